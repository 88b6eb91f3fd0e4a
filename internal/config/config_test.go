package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
output: out
llm:
  base: http://localhost:8080/v1
  model: local-model
  contextWindow: 32000
searx:
  url: http://localhost:8888
breadth: 3
depth: 7
locale: fi-FI
pricing:
  inputPerMTok: 2.5
  perQuery: 0.001
cache:
  dir: /tmp/goreport-cache
enablePDF: true
`)
	var cfg Config
	if err := LoadFile(&cfg, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutputDir != "out" || cfg.LLMModel != "local-model" || cfg.ContextWindow != 32000 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.SearxURL != "http://localhost:8888" || cfg.Breadth != 3 || cfg.Depth != 7 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.InputPerMTok != 2.5 || cfg.PricePerQuery != 0.001 {
		t.Fatalf("pricing not applied: %+v", cfg)
	}
	if cfg.CacheDir != "/tmp/goreport-cache" || !cfg.EnablePDF {
		t.Fatalf("cache/pdf not applied: %+v", cfg)
	}
}

func TestLoadFile_FlagsWinOverFile(t *testing.T) {
	path := writeConfig(t, "llm:\n  model: from-file\nbreadth: 9\n")
	cfg := Config{LLMModel: "from-flag", Breadth: 2}
	if err := LoadFile(&cfg, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLMModel != "from-flag" {
		t.Fatalf("flag value must win, got %q", cfg.LLMModel)
	}
	if cfg.Breadth != 2 {
		t.Fatalf("flag value must win, got %d", cfg.Breadth)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	var cfg Config
	if err := LoadFile(&cfg, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := writeConfig(t, "breadth: [not an int")
	if err := LoadFile(&cfg, path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("SEARX_URL", "http://env:8888")
	t.Setenv("LLM_CONTEXT_WINDOW", "16000")

	cfg := Config{LLMModel: "flag-model"}
	ApplyEnv(&cfg)
	if cfg.LLMModel != "flag-model" {
		t.Fatalf("set field must not be overwritten: %q", cfg.LLMModel)
	}
	if cfg.SearxURL != "http://env:8888" {
		t.Fatalf("env not applied: %q", cfg.SearxURL)
	}
	if cfg.ContextWindow != 16000 {
		t.Fatalf("env context window not applied: %d", cfg.ContextWindow)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{LLMModel: "gpt-4o"}
	ApplyDefaults(&cfg)
	if cfg.OutputDir == "" || cfg.CacheDir == "" || cfg.UserAgent == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	if cfg.Breadth != 4 || cfg.Depth != 5 || cfg.Locale != "en-US" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ContextWindow < 100_000 {
		t.Fatalf("context window should derive from model name, got %d", cfg.ContextWindow)
	}
}

func TestValidate(t *testing.T) {
	base := Config{LLMModel: "m", SearxURL: "http://s", LLMAPIKey: "k"}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := base
	c.LLMModel = " "
	if err := c.Validate(); !errors.Is(err, ErrMissingModel) {
		t.Fatalf("want ErrMissingModel, got %v", err)
	}

	c = base
	c.SearxURL = ""
	if err := c.Validate(); !errors.Is(err, ErrMissingSearchURL) {
		t.Fatalf("want ErrMissingSearchURL, got %v", err)
	}

	c = base
	c.LLMAPIKey = ""
	if err := c.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("want ErrMissingAPIKey, got %v", err)
	}

	// A local endpoint does not need a key.
	c.LLMBaseURL = "http://localhost:8080/v1"
	if err := c.Validate(); err != nil {
		t.Fatalf("local endpoint should not require a key: %v", err)
	}
}
