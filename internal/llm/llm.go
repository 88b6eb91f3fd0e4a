package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Request is one structured-output generation call. The system message carries
// the strict JSON contract describing the exact output shape; the user message
// carries the stage's inputs.
type Request struct {
	System string
	User   string
}

// Usage reports token counters for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the raw model output plus its usage counters. Content is
// expected to be JSON, possibly wrapped in markdown fences.
type Response struct {
	Content string
	Usage   Usage
}

// Backend is the single capability the pipeline needs from a language model:
// one structured-output completion per call. Exactly one implementation is
// selected at configuration time and injected; the pipeline never branches on
// provider.
type Backend interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// OpenAI adapts an OpenAI-compatible chat completions endpoint to Backend.
// Any local or hosted server speaking the same wire format works through the
// base URL.
type OpenAI struct {
	Client *openai.Client
	Model  string
}

// NewOpenAI builds a backend against baseURL (empty means the default OpenAI
// endpoint) using the given model.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{Client: openai.NewClientWithConfig(cfg), Model: model}
}

// Generate issues one chat completion. Temperature is kept low so structured
// output stays parseable and reruns stay close to deterministic.
func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: 0.1,
		N:           1,
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no choices returned")
	}
	return Response{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// StripFences removes a surrounding markdown code fence, which some models add
// around JSON despite the strict contract.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	end := -1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	if end < 0 {
		// Opening fence never closed: keep everything after it.
		return strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// DecodeJSON parses a model response into v, tolerating markdown fences around
// the payload. A parse failure means the backend violated the output schema.
func DecodeJSON(content string, v any) error {
	if err := json.Unmarshal([]byte(StripFences(content)), v); err != nil {
		return fmt.Errorf("parse model json: %w", err)
	}
	return nil
}
