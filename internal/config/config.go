package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNilConfig is returned when a nil Config is provided.
var ErrNilConfig = errors.New("config is nil")

// Request APIs a variant can target.
const (
	APIChat      = "chat"
	APIResponses = "responses"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the full application configuration.
type Config struct {
	LLM        ProviderConfig   `mapstructure:"llm"`
	Embedder   ProviderConfig   `mapstructure:"embedder"`
	Variants   []VariantConfig  `mapstructure:"variants"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Share      ShareConfig      `mapstructure:"share"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

// ProviderConfig holds connection details for a single AI provider.
type ProviderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	FallbackModel string        `mapstructure:"fallback_model"`
	Dimensions    int           `mapstructure:"dimensions"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// VariantConfig describes one request shape tried within an extraction round.
type VariantConfig struct {
	Label       string  `mapstructure:"label"`
	API         string  `mapstructure:"api"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	JSONMode    bool    `mapstructure:"json_mode"`
	Schema      bool    `mapstructure:"schema"`
}

// ExtractionConfig bounds the batch orchestrator.
type ExtractionConfig struct {
	MaxBatches       int  `mapstructure:"max_batches"`
	MaxItemsPerBatch int  `mapstructure:"max_items_per_batch"`
	SeenWindow       int  `mapstructure:"seen_window"`
	SinglePass       bool `mapstructure:"single_pass"`
}

// StorageConfig selects the sinks extracted menus are written to. Empty
// values disable the corresponding sink.
type StorageConfig struct {
	GraphPath        string `mapstructure:"graph_path"`
	VectorPath       string `mapstructure:"vector_path"`
	PostgresURL      string `mapstructure:"postgres_url"`
	PostgresMaxConns int32  `mapstructure:"postgres_max_conns"`
}

// CacheConfig configures the extraction result cache.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// ShareConfig configures signed share links.
type ShareConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Origin string        `mapstructure:"origin"`
}

// ServerConfig configures the HTTP runtime.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	RatePerMin   int           `mapstructure:"rate_per_min"`
	Burst        int           `mapstructure:"burst"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults registers a default for every key so environment overrides
// such as LLM_API_KEY bind during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.fallback_model", "gpt-4.1-mini")
	v.SetDefault("llm.dimensions", 0)
	v.SetDefault("llm.timeout", 90*time.Second)

	v.SetDefault("embedder.base_url", "")
	v.SetDefault("embedder.api_key", "")
	v.SetDefault("embedder.model", "text-embedding-3-small")
	v.SetDefault("embedder.fallback_model", "")
	v.SetDefault("embedder.dimensions", 0)
	v.SetDefault("embedder.timeout", 30*time.Second)

	v.SetDefault("extraction.max_batches", 6)
	v.SetDefault("extraction.max_items_per_batch", 12)
	v.SetDefault("extraction.seen_window", 40)
	v.SetDefault("extraction.single_pass", true)

	v.SetDefault("storage.graph_path", "")
	v.SetDefault("storage.vector_path", "")
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.postgres_max_conns", 4)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", 6*time.Hour)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("share.secret", "")
	v.SetDefault("share.ttl", 0)
	v.SetDefault("share.origin", "http://localhost:8000")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.rate_per_min", 6)
	v.SetDefault("server.burst", 2)
	v.SetDefault("server.max_body_bytes", 12<<20)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadFrom reads a populated Viper instance into a Config. When no variants
// are configured the default ladder for the configured models is used.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, ErrNilConfig
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Variants) == 0 {
		cfg.Variants = DefaultVariants(cfg.LLM)
	}
	for i := range cfg.Variants {
		if cfg.Variants[i].Model == "" {
			cfg.Variants[i].Model = cfg.LLM.Model
		}
	}
	return &cfg, nil
}

// Load reads the global Viper config into a Config struct.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// DefaultVariants is the request ladder tried within each round: JSON mode,
// free text, a fallback model, then the responses API with a JSON schema on
// the primary and fallback models.
func DefaultVariants(p ProviderConfig) []VariantConfig {
	fallback := p.FallbackModel
	if fallback == "" {
		fallback = p.Model
	}
	return []VariantConfig{
		{Label: "json_object", API: APIChat, Model: p.Model, MaxTokens: 900, JSONMode: true},
		{Label: "no_response_format", API: APIChat, Model: p.Model, MaxTokens: 1200},
		{Label: "fallback_model", API: APIChat, Model: fallback, MaxTokens: 1600, Temperature: 0.2, JSONMode: true},
		{Label: "responses_primary", API: APIResponses, Model: p.Model, MaxTokens: 2000, Schema: true},
		{Label: "responses_fallback", API: APIResponses, Model: fallback, MaxTokens: 2600, Schema: true},
	}
}

// Validate checks that the settings needed for extraction are present.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	var errs []error
	if c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url is required"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (or set LLM_API_KEY)"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Extraction.MaxBatches <= 0 {
		errs = append(errs, errors.New("extraction.max_batches must be positive"))
	}
	if c.Extraction.MaxItemsPerBatch <= 0 {
		errs = append(errs, errors.New("extraction.max_items_per_batch must be positive"))
	}
	if c.Extraction.SeenWindow < 0 {
		errs = append(errs, errors.New("extraction.seen_window must not be negative"))
	}
	for i, vc := range c.Variants {
		if vc.API != APIChat && vc.API != APIResponses {
			errs = append(errs, fmt.Errorf("variants[%d].api must be %q or %q, got %q", i, APIChat, APIResponses, vc.API))
		}
		if vc.Label == "" {
			errs = append(errs, fmt.Errorf("variants[%d].label is required", i))
		}
	}
	switch c.Cache.Backend {
	case "", CacheNone, CacheMemory, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of none, memory, redis", c.Cache.Backend))
	}
	return errors.Join(errs...)
}

// ValidateServe checks the extra settings the HTTP runtime needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.RatePerMin <= 0 {
		errs = append(errs, errors.New("server.rate_per_min must be positive"))
	}
	if c.Share.Secret != "" && len(c.Share.Secret) < 16 {
		errs = append(errs, errors.New("share.secret must be at least 16 bytes"))
	}
	return errors.Join(errs...)
}
