package provider

import (
	"context"
	"errors"

	"github.com/convocatoriaspro/convocatorias/pkg/openrouter"
)

// OpenRouter is a chat-completions provider.
type OpenRouter struct {
	client openrouter.Client
}

// NewOpenRouter wraps an OpenRouter client.
func NewOpenRouter(client openrouter.Client) *OpenRouter {
	return &OpenRouter{client: client}
}

// Name implements Provider.
func (p *OpenRouter) Name() string { return "openrouter" }

// Complete sends a system+user message pair and returns choices[0].message.content.
func (p *OpenRouter) Complete(ctx context.Context, c Completion) (string, error) {
	req := openrouter.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openrouter.Message{
			{Role: "user", Content: c.Prompt},
		},
	}
	if c.System != "" {
		req.Messages = append([]openrouter.Message{{Role: "system", Content: c.System}}, req.Messages...)
	}
	if c.Temperature > 0 {
		req.Temperature = &c.Temperature
	}
	if c.MaxTokens > 0 {
		req.MaxTokens = &c.MaxTokens
	}
	if c.TopP > 0 {
		req.TopP = &c.TopP
	}

	resp, err := p.client.ChatCompletion(ctx, req)
	if err != nil {
		pe := &Error{Provider: p.Name(), Err: err}
		var apiErr *openrouter.APIError
		if errors.As(err, &apiErr) {
			pe.StatusCode = apiErr.StatusCode
		}
		return "", pe
	}
	return text(resp.Text())
}
