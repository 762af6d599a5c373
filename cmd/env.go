package main

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/convocatoriaspro/convocatorias/internal/catalog"
	"github.com/convocatoriaspro/convocatorias/internal/config"
	"github.com/convocatoriaspro/convocatorias/internal/parse"
	"github.com/convocatoriaspro/convocatorias/internal/prompt"
	"github.com/convocatoriaspro/convocatorias/internal/provider"
	"github.com/convocatoriaspro/convocatorias/internal/search"
	"github.com/convocatoriaspro/convocatorias/internal/store"
	"github.com/convocatoriaspro/convocatorias/internal/validate"
	anthropicpkg "github.com/convocatoriaspro/convocatorias/pkg/anthropic"
	"github.com/convocatoriaspro/convocatorias/pkg/gemini"
	"github.com/convocatoriaspro/convocatorias/pkg/openrouter"
)

// appEnv holds the components a command needs. Fields a mode does not use
// stay nil.
type appEnv struct {
	Catalog      *catalog.Catalog
	Store        store.Store
	Orchestrator *search.Orchestrator
	Service      *search.Service
	Validator    *validate.Validator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv validates cfg for mode and builds what that mode needs. Callers
// should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(c.Catalog.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load catalog")
	}
	env := &appEnv{Catalog: cat}

	needsStore := mode == "serve" || mode == "search" || mode == "migrate"
	needsLLM := mode == "serve" || mode == "search" || mode == "parse"
	needsValidator := mode == "serve" || mode == "validate"

	if needsStore {
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
	}

	if needsLLM {
		normalizer := parse.NewNormalizer(cat, parse.WithRelevanceFilter(c.Search.RelevanceFilter))
		env.Orchestrator = search.NewOrchestrator(c.Search.Steps, initProviders(c), prompt.NewBuilder(cat), normalizer)
		if env.Store != nil {
			env.Service = search.NewService(env.Orchestrator, env.Store, search.WithDegradeOnError(c.Search.DegradeOnError))
		}
	}

	if needsValidator {
		opts := []validate.Option{
			validate.WithBatchPause(c.Validation.BatchPause),
			validate.WithPrivateNetworks(c.Validation.AllowPrivateNetworks),
		}
		if c.Validation.UserAgent != "" {
			opts = append(opts, validate.WithUserAgent(c.Validation.UserAgent))
		}
		env.Validator = validate.New(cat, opts...)
	}

	return env, nil
}

// initStore opens the backend named by store.driver.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{MaxConns: c.Store.MaxConns})
	case "rest":
		return store.NewREST(c.Store.REST.URL, c.Store.REST.ServiceKey), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initProviders registers every provider that has an API key. A step that
// names an unregistered provider fails when it runs.
func initProviders(c *config.Config) *provider.Registry {
	reg := provider.NewRegistry()

	if c.OpenRouter.Key != "" {
		opts := []openrouter.Option{openrouter.WithAppInfo(c.OpenRouter.Referer, c.OpenRouter.Title)}
		if c.OpenRouter.BaseURL != "" {
			opts = append(opts, openrouter.WithBaseURL(c.OpenRouter.BaseURL))
		}
		reg.Register(provider.NewOpenRouter(openrouter.NewClient(c.OpenRouter.Key, opts...)))
	}

	if c.Gemini.Key != "" {
		var opts []gemini.Option
		if c.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(c.Gemini.BaseURL))
		}
		reg.Register(provider.NewGemini(gemini.NewClient(c.Gemini.Key, opts...)))
	}

	if c.Anthropic.Key != "" {
		var opts []option.RequestOption
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.Anthropic.BaseURL))
		}
		reg.Register(provider.NewAnthropic(anthropicpkg.NewClient(c.Anthropic.Key, opts...)))
	}

	zap.L().Debug("providers registered", zap.Strings("providers", reg.Names()))
	return reg
}
