package provider

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/convocatoriaspro/convocatorias/pkg/anthropic"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// Anthropic is a Messages API provider.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(client anthropic.Client) *Anthropic {
	return &Anthropic{client: client}
}

// Name implements Provider.
func (p *Anthropic) Name() string { return "anthropic" }

// Complete sends a single user message and concatenates the text blocks.
func (p *Anthropic) Complete(ctx context.Context, c Completion) (string, error) {
	req := anthropic.MessageRequest{
		Model:     c.Model,
		MaxTokens: int64(c.MaxTokens),
		System:    c.System,
		Messages:  []anthropic.Message{{Role: "user", Content: c.Prompt}},
	}
	if req.Model == "" {
		req.Model = defaultAnthropicModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 4096
	}
	if c.Temperature > 0 {
		req.Temperature = &c.Temperature
	}
	if c.TopP > 0 {
		req.TopP = &c.TopP
	}
	if c.TopK > 0 {
		k := int64(c.TopK)
		req.TopK = &k
	}

	resp, err := p.client.CreateMessage(ctx, req)
	if err != nil {
		pe := &Error{Provider: p.Name(), Err: err}
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			pe.StatusCode = apiErr.StatusCode
		}
		return "", pe
	}
	resp.Usage.LogUsage(req.Model, "complete")
	return text(resp.Text())
}
