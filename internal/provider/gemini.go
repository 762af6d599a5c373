package provider

import (
	"context"
	"errors"

	"github.com/convocatoriaspro/convocatorias/pkg/gemini"
)

// Gemini is a generateContent provider.
type Gemini struct {
	client gemini.Client
}

// NewGemini wraps a Gemini client.
func NewGemini(client gemini.Client) *Gemini {
	return &Gemini{client: client}
}

// Name implements Provider.
func (p *Gemini) Name() string { return "gemini" }

// Complete returns candidates[0].content.parts[0].text.
func (p *Gemini) Complete(ctx context.Context, c Completion) (string, error) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: c.Prompt}}}},
	}
	if c.System != "" {
		req.SystemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: c.System}}}
	}

	cfg := &gemini.GenerationConfig{}
	if c.Temperature > 0 {
		cfg.Temperature = &c.Temperature
	}
	if c.MaxTokens > 0 {
		cfg.MaxOutputTokens = &c.MaxTokens
	}
	if c.TopP > 0 {
		cfg.TopP = &c.TopP
	}
	if c.TopK > 0 {
		cfg.TopK = &c.TopK
	}
	if *cfg != (gemini.GenerationConfig{}) {
		req.GenerationConfig = cfg
	}

	resp, err := p.client.GenerateContent(ctx, c.Model, req)
	if err != nil {
		pe := &Error{Provider: p.Name(), Err: err}
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			pe.StatusCode = apiErr.StatusCode
		}
		return "", pe
	}
	return text(resp.Text())
}
