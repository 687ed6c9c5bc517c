package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

const maxTokens = 2048

// maxProgramBytes rejects absurdly large completions before they reach the
// sandbox workspace.
const maxProgramBytes = 64 * 1024

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

// Generate sends the assembled prompt and returns the produced program.
// No retries happen here; retry policy is an orchestrator decision.
func (c *Client) Generate(ctx context.Context, p domain.Prompt) (domain.GeneratedProgram, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.GeneratedProgram{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return domain.GeneratedProgram{}, &domain.GenerationError{Reason: "provider returned no choices"}
	}

	source := StripFences(resp.Choices[0].Message.Content)
	if strings.TrimSpace(source) == "" {
		return domain.GeneratedProgram{}, &domain.GenerationError{Reason: "provider returned an empty program"}
	}
	if len(source) > maxProgramBytes {
		return domain.GeneratedProgram{}, &domain.GenerationError{Reason: fmt.Sprintf("program exceeds %d bytes", maxProgramBytes)}
	}

	return domain.GeneratedProgram{Source: source, GeneratedAt: time.Now()}, nil
}

// classify maps provider failures onto the GenerationError taxonomy:
// rate-limit and transport problems are transient, quota/auth are terminal.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return &domain.GenerationError{Reason: "provider rejected credentials", Err: err}
		case codeIs(apiErr, "insufficient_quota"):
			return &domain.GenerationError{Reason: "provider quota exceeded", Err: err}
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &domain.GenerationError{Reason: "provider rate limited", Transient: true, Err: err}
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return &domain.GenerationError{Reason: "provider error", Transient: true, Err: err}
		}
		return &domain.GenerationError{Reason: "provider rejected request", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.GenerationError{Reason: "generation timed out", Transient: true, Err: err}
	}
	return &domain.GenerationError{Reason: "transport failure", Transient: true, Err: err}
}

func codeIs(apiErr *openai.APIError, code string) bool {
	s, ok := apiErr.Code.(string)
	return ok && s == code
}

// StripFences removes a surrounding markdown code block, with or without a
// language tag, from a completion.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```python"); idx >= 0 {
		s = s[idx+len("```python"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
