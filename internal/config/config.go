package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/goreport/internal/budget"
)

// Configuration errors. These block progress before any stage runs; the
// supervising layer can re-prompt and retry without crashing.
var (
	ErrMissingModel     = errors.New("no model selected")
	ErrMissingSearchURL = errors.New("no search endpoint configured")
	ErrMissingAPIKey    = errors.New("no API key configured for hosted endpoint")
)

// Config holds the runtime configuration for one run.
type Config struct {
	OutputDir string
	CacheDir  string

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string
	// ContextWindow is the model's context size in tokens. Zero means derive
	// from the model name.
	ContextWindow int

	// Search
	SearxURL  string
	SearxKey  string
	UserAgent string

	// Pipeline shape
	Breadth int // max questions/queries/chapters per stage
	Depth   int // results per search query
	Locale  string

	// Pricing (dollars)
	InputPerMTok  float64
	OutputPerMTok float64
	PricePerQuery float64
	PricePerPage  float64

	// Behavior
	EnablePDF bool
	Verbose   bool
}

// FileConfig is the single-file YAML schema. Nested sections map naturally to
// flags and environment variables.
type FileConfig struct {
	Output string `yaml:"output"`

	LLM struct {
		BaseURL       string `yaml:"base"`
		Model         string `yaml:"model"`
		APIKey        string `yaml:"key"`
		ContextWindow int    `yaml:"contextWindow"`
	} `yaml:"llm"`

	Searx struct {
		URL string `yaml:"url"`
		Key string `yaml:"key"`
		UA  string `yaml:"ua"`
	} `yaml:"searx"`

	Breadth int    `yaml:"breadth"`
	Depth   int    `yaml:"depth"`
	Locale  string `yaml:"locale"`

	Pricing struct {
		InputPerMTok  float64 `yaml:"inputPerMTok"`
		OutputPerMTok float64 `yaml:"outputPerMTok"`
		PerQuery      float64 `yaml:"perQuery"`
		PerPage       float64 `yaml:"perPage"`
	} `yaml:"pricing"`

	Cache struct {
		Dir string `yaml:"dir"`
	} `yaml:"cache"`

	EnablePDF bool `yaml:"enablePDF"`
	Verbose   bool `yaml:"verbose"`
}

// LoadFile reads a YAML config file and overlays it onto cfg. Fields already
// set on cfg (from flags) win over file values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	overlayString(&cfg.OutputDir, fc.Output)
	overlayString(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	overlayString(&cfg.LLMModel, fc.LLM.Model)
	overlayString(&cfg.LLMAPIKey, fc.LLM.APIKey)
	overlayInt(&cfg.ContextWindow, fc.LLM.ContextWindow)
	overlayString(&cfg.SearxURL, fc.Searx.URL)
	overlayString(&cfg.SearxKey, fc.Searx.Key)
	overlayString(&cfg.UserAgent, fc.Searx.UA)
	overlayInt(&cfg.Breadth, fc.Breadth)
	overlayInt(&cfg.Depth, fc.Depth)
	overlayString(&cfg.Locale, fc.Locale)
	overlayFloat(&cfg.InputPerMTok, fc.Pricing.InputPerMTok)
	overlayFloat(&cfg.OutputPerMTok, fc.Pricing.OutputPerMTok)
	overlayFloat(&cfg.PricePerQuery, fc.Pricing.PerQuery)
	overlayFloat(&cfg.PricePerPage, fc.Pricing.PerPage)
	overlayString(&cfg.CacheDir, fc.Cache.Dir)
	if fc.EnablePDF {
		cfg.EnablePDF = true
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
	return nil
}

// ApplyEnv fills still-empty fields from the environment.
func ApplyEnv(cfg *Config) {
	overlayString(&cfg.LLMBaseURL, os.Getenv("LLM_BASE_URL"))
	overlayString(&cfg.LLMModel, os.Getenv("LLM_MODEL"))
	overlayString(&cfg.LLMAPIKey, os.Getenv("LLM_API_KEY"))
	overlayString(&cfg.SearxURL, os.Getenv("SEARX_URL"))
	overlayString(&cfg.SearxKey, os.Getenv("SEARX_KEY"))
	if v := os.Getenv("LLM_CONTEXT_WINDOW"); v != "" && cfg.ContextWindow == 0 {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContextWindow = n
		}
	}
}

// ApplyDefaults fills remaining zero values with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "reports"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".goreport-cache"
	}
	if cfg.Breadth <= 0 {
		cfg.Breadth = 4
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 5
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "goreport/1.0 (+https://github.com/hyperifyio/goreport)"
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = budget.ModelContextTokens(cfg.LLMModel)
	}
}

// Validate reports configuration that must block progress. A local base URL
// may omit the API key; the hosted default endpoint requires one.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLMModel) == "" {
		return ErrMissingModel
	}
	if strings.TrimSpace(c.SearxURL) == "" {
		return ErrMissingSearchURL
	}
	if strings.TrimSpace(c.LLMBaseURL) == "" && strings.TrimSpace(c.LLMAPIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func overlayString(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, v int) {
	if *dst == 0 && v != 0 {
		*dst = v
	}
}

func overlayFloat(dst *float64, v float64) {
	if *dst == 0 && v != 0 {
		*dst = v
	}
}
