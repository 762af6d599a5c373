// Package search runs queries through the LLM providers and turns their
// output into result records.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/parse"
	"github.com/convocatoriaspro/convocatorias/internal/prompt"
	"github.com/convocatoriaspro/convocatorias/internal/provider"
)

// ErrEmptyText is returned by ParseText when there is nothing to parse.
var ErrEmptyText = eris.New("search: text is empty")

// StepConfig selects the provider, model and sampling for one LLM call.
type StepConfig struct {
	Provider    string        `mapstructure:"provider" json:"provider"`
	Model       string        `mapstructure:"model" json:"model"`
	Temperature float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
	TopP        float64       `mapstructure:"top_p" json:"top_p"`
	TopK        int           `mapstructure:"top_k" json:"top_k"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Config holds the per-step settings of both strategies and of ParseText.
type Config struct {
	Single StepConfig `mapstructure:"single" json:"single"`
	Draft  StepConfig `mapstructure:"draft" json:"draft"`
	Detail StepConfig `mapstructure:"detail" json:"detail"`
	Parse  StepConfig `mapstructure:"parse" json:"parse"`
}

// DefaultConfig returns the tuned defaults: a high-temperature single call,
// a fast short draft and a careful low-temperature detail step.
func DefaultConfig() Config {
	return Config{
		Single: StepConfig{
			Provider:    "openrouter",
			Model:       "openai/gpt-4o-mini",
			Temperature: 0.75,
			MaxTokens:   4000,
			Timeout:     60 * time.Second,
		},
		Draft: StepConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			Temperature: 0.9,
			MaxTokens:   600,
			TopP:        0.95,
			TopK:        40,
			Timeout:     30 * time.Second,
		},
		Detail: StepConfig{
			Provider:    "openrouter",
			Model:       "anthropic/claude-3.5-sonnet",
			Temperature: 0.2,
			MaxTokens:   4000,
			Timeout:     90 * time.Second,
		},
		Parse: StepConfig{
			Provider:    "openrouter",
			Model:       "openai/gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   1500,
			Timeout:     30 * time.Second,
		},
	}
}

// Steps returns every step keyed by name.
func (c Config) Steps() map[string]StepConfig {
	return map[string]StepConfig{
		"single": c.Single,
		"draft":  c.Draft,
		"detail": c.Detail,
		"parse":  c.Parse,
	}
}

// Orchestrator issues the provider calls of a strategy. It never retries:
// a failed call surfaces to the caller immediately.
type Orchestrator struct {
	cfg       Config
	providers *provider.Registry
	prompts   *prompt.Builder
	parser    *parse.Normalizer
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config, providers *provider.Registry, prompts *prompt.Builder, parser *parse.Normalizer) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		providers: providers,
		prompts:   prompts,
		parser:    parser,
	}
}

// Parser returns the normalizer used for model output.
func (o *Orchestrator) Parser() *parse.Normalizer { return o.parser }

// Generate returns the raw model text for q under the given strategy.
func (o *Orchestrator) Generate(ctx context.Context, q model.SearchQuery, strategy model.Strategy) (string, error) {
	switch strategy {
	case model.StrategySingle:
		return o.call(ctx, "single", o.cfg.Single, prompt.SystemPrompt,
			o.prompts.Build(q, prompt.Context{Variant: prompt.VariantSingle}))

	case model.StrategySmart:
		draft, err := o.call(ctx, "draft", o.cfg.Draft, prompt.NamesSystemPrompt,
			o.prompts.Build(q, prompt.Context{Variant: prompt.VariantNames}))
		if err != nil {
			return "", err
		}
		return o.call(ctx, "detail", o.cfg.Detail, prompt.SystemPrompt,
			o.prompts.Build(q, prompt.Context{Variant: prompt.VariantDetail, CandidateList: draft}))

	default:
		return "", eris.Errorf("search: unknown strategy %q", strategy)
	}
}

// RunSearch generates and parses results for q. Provider failures are
// returned as is; unparseable output becomes synthetic records.
func (o *Orchestrator) RunSearch(ctx context.Context, q model.SearchQuery, strategy model.Strategy) ([]model.ResultRecord, error) {
	raw, err := o.Generate(ctx, q, strategy)
	if err != nil {
		return nil, err
	}
	return o.parser.Records(raw, q.Text), nil
}

// ParseText extracts one record from user-pasted text.
func (o *Orchestrator) ParseText(ctx context.Context, text string) (model.ResultRecord, error) {
	if strings.TrimSpace(text) == "" {
		return model.ResultRecord{}, ErrEmptyText
	}
	raw, err := o.call(ctx, "parse", o.cfg.Parse, prompt.SystemPrompt, o.prompts.ParseText(text))
	if err != nil {
		return model.ResultRecord{}, err
	}
	return o.parser.Records(raw, "")[0], nil
}

func (o *Orchestrator) call(ctx context.Context, step string, sc StepConfig, system, userPrompt string) (string, error) {
	p, err := o.providers.Get(sc.Provider)
	if err != nil {
		return "", eris.Wrapf(err, "search: %s step", step)
	}

	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := p.Complete(ctx, provider.Completion{
		Model:       sc.Model,
		System:      system,
		Prompt:      userPrompt,
		Temperature: sc.Temperature,
		MaxTokens:   sc.MaxTokens,
		TopP:        sc.TopP,
		TopK:        sc.TopK,
	})

	log := zap.L().With(
		zap.String("step", step),
		zap.String("provider", p.Name()),
		zap.String("model", sc.Model),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		log.Warn("search: provider call failed", zap.Error(err))
		return "", eris.Wrapf(err, "search: %s step", step)
	}
	log.Info("search: provider call complete", zap.Int("chars", len(text)))
	return text, nil
}
