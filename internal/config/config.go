package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/convocatoriaspro/convocatorias/internal/search"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Validation ValidateConfig   `yaml:"validate" mapstructure:"validate"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	// Driver is one of sqlite, postgres or rest.
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32      `yaml:"max_conns" mapstructure:"max_conns"`
	REST        RESTConfig `yaml:"rest" mapstructure:"rest"`
}

// RESTConfig holds the hosted database REST endpoint and its service key.
type RESTConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	ServiceKey string `yaml:"service_key" mapstructure:"service_key"`
}

// OpenRouterConfig holds OpenRouter chat-completions settings.
type OpenRouterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Referer string `yaml:"referer" mapstructure:"referer"`
	Title   string `yaml:"title" mapstructure:"title"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig configures the orchestrator and the run service.
type SearchConfig struct {
	// DegradeOnError completes runs with synthetic records when a provider fails.
	DegradeOnError  bool          `yaml:"degrade_on_error" mapstructure:"degrade_on_error"`
	RelevanceFilter bool          `yaml:"relevance_filter" mapstructure:"relevance_filter"`
	Steps           search.Config `yaml:"steps" mapstructure:"steps"`
}

// ValidateConfig configures the source validator.
type ValidateConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	TimeoutSecs   int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchPause    time.Duration `yaml:"batch_pause" mapstructure:"batch_pause"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	// AllowPrivateNetworks lets source URLs reach loopback and private hosts.
	AllowPrivateNetworks bool `yaml:"allow_private_networks" mapstructure:"allow_private_networks"`
}

// CatalogConfig points at an optional reference-data file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Issuer         string `yaml:"issuer" mapstructure:"issuer"`
	AllowAnonymous bool   `yaml:"allow_anonymous" mapstructure:"allow_anonymous"`
	AnonymousID    string `yaml:"anonymous_id" mapstructure:"anonymous_id"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RateLimit          float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst          int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONVOCATORIAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "convocatorias.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.rest.url", "")
	v.SetDefault("store.rest.service_key", "")
	v.SetDefault("openrouter.key", "")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.referer", "https://convocatoriaspro.cl")
	v.SetDefault("openrouter.title", "ConvocatoriasPro")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("search.degrade_on_error", true)
	v.SetDefault("search.relevance_filter", false)
	setStepDefaults(v)
	v.SetDefault("validate.max_concurrent", 3)
	v.SetDefault("validate.timeout_secs", 10)
	v.SetDefault("validate.batch_pause", time.Second)
	v.SetDefault("validate.user_agent", "Mozilla/5.0 (compatible; ConvocatoriasProValidator/1.0)")
	v.SetDefault("validate.allow_private_networks", false)
	v.SetDefault("catalog.path", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.allow_anonymous", false)
	v.SetDefault("auth.anonymous_id", "anonymous")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 180)
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setStepDefaults(v *viper.Viper) {
	for name, sc := range search.DefaultConfig().Steps() {
		prefix := "search.steps." + name + "."
		v.SetDefault(prefix+"provider", sc.Provider)
		v.SetDefault(prefix+"model", sc.Model)
		v.SetDefault(prefix+"temperature", sc.Temperature)
		v.SetDefault(prefix+"max_tokens", sc.MaxTokens)
		v.SetDefault(prefix+"top_p", sc.TopP)
		v.SetDefault(prefix+"top_k", sc.TopK)
		v.SetDefault(prefix+"timeout", sc.Timeout)
	}
}

// Validate checks that the settings a command mode depends on are present.
// mode is one of serve, search, parse, validate or migrate.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateProviders()...)
		errs = append(errs, c.validateValidator()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateBurst <= 0) {
			errs = append(errs, "server.rate_limit must be >= 0 with rate_burst > 0")
		}
		if c.Auth.JWTSecret == "" && !c.Auth.AllowAnonymous {
			errs = append(errs, "auth.jwt_secret is required unless auth.allow_anonymous is set")
		}
	case "search":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateProviders()...)
	case "parse":
		errs = append(errs, c.validateProviders()...)
	case "validate":
		errs = append(errs, c.validateValidator()...)
	case "migrate":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
	case "rest":
		var errs []string
		if c.Store.REST.URL == "" {
			errs = append(errs, "store.rest.url is required")
		}
		if c.Store.REST.ServiceKey == "" {
			errs = append(errs, "store.rest.service_key is required")
		}
		return errs
	default:
		return []string{"store.driver must be one of sqlite, postgres, rest"}
	}
	return nil
}

// validateProviders requires an API key for every provider a search step uses.
func (c *Config) validateProviders() []string {
	var errs []string
	for _, name := range c.ProvidersInUse() {
		switch name {
		case "openrouter":
			if c.OpenRouter.Key == "" {
				errs = append(errs, "openrouter.key is required")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		default:
			errs = append(errs, "unknown provider "+name)
		}
	}
	return errs
}

func (c *Config) validateValidator() []string {
	var errs []string
	if c.Validation.MaxConcurrent < 1 || c.Validation.MaxConcurrent > 10 {
		errs = append(errs, "validate.max_concurrent must be between 1 and 10")
	}
	if c.Validation.TimeoutSecs < 1 {
		errs = append(errs, "validate.timeout_secs must be > 0")
	}
	return errs
}

// ProvidersInUse returns the distinct provider names referenced by the
// search steps, in step order.
func (c *Config) ProvidersInUse() []string {
	s := c.Search.Steps
	var out []string
	seen := make(map[string]bool)
	for _, sc := range []search.StepConfig{s.Single, s.Draft, s.Detail, s.Parse} {
		if sc.Provider == "" || seen[sc.Provider] {
			continue
		}
		seen[sc.Provider] = true
		out = append(out, sc.Provider)
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
