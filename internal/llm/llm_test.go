package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"leading whitespace", "  \n```json\n{\"a\":1}\n```\n", `{"a":1}`},
		{"multiline body", "```json\n{\n  \"a\": 1\n}\n```", "{\n  \"a\": 1\n}"},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"unterminated fence multiline", "```\n{\n  \"a\": 1\n}", "{\n  \"a\": 1\n}"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := StripFences(c.in); got != c.want {
				t.Fatalf("StripFences(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Queries []string `json:"queries"`
	}
	if err := DecodeJSON("```json\n{\"queries\":[\"a\",\"b\"]}\n```", &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Queries) != 2 || out.Queries[0] != "a" {
		t.Fatalf("unexpected decode result: %+v", out)
	}
	if err := DecodeJSON("not json at all", &out); err == nil {
		t.Fatal("expected error on schema violation")
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"  {\"ok\":true}  "}}],
			"usage":{"prompt_tokens":42,"completion_tokens":7}
		}`))
	}))
	defer srv.Close()

	b := NewOpenAI(srv.URL, "test-key", "test-model")
	resp, err := b.Generate(context.Background(), Request{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != `{"ok":true}` {
		t.Fatalf("content not trimmed: %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 42 || resp.Usage.CompletionTokens != 7 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if gotBody.Model != "test-model" {
		t.Fatalf("unexpected model in request: %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Content != "usr" {
		t.Fatalf("unexpected messages: %+v", gotBody.Messages)
	}
}

func TestOpenAI_GenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	b := NewOpenAI(srv.URL, "k", "m")
	if _, err := b.Generate(context.Background(), Request{System: "s", User: "u"}); err == nil {
		t.Fatal("expected error when no choices are returned")
	}
}
