package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 6, cfg.Extraction.MaxBatches)
	assert.Equal(t, 12, cfg.Extraction.MaxItemsPerBatch)
	assert.Equal(t, 40, cfg.Extraction.SeenWindow)
	assert.Equal(t, 6*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)

	require.Len(t, cfg.Variants, 5)
	labels := make([]string, len(cfg.Variants))
	for i, vc := range cfg.Variants {
		labels[i] = vc.Label
	}
	assert.Equal(t, []string{"json_object", "no_response_format", "fallback_model", "responses_primary", "responses_fallback"}, labels)
	assert.Equal(t, "gpt-4.1-mini", cfg.Variants[2].Model)
	assert.InDelta(t, 0.2, cfg.Variants[2].Temperature, 1e-9)
	assert.Equal(t, APIResponses, cfg.Variants[4].API)
}

func TestLoadFrom_File(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, `
llm:
  api_key: sk-test
  model: gpt-4.1
extraction:
  max_batches: 3
cache:
  backend: redis
  ttl: 30m
variants:
  - label: only
    api: responses
    max_tokens: 500
    schema: true
`))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Extraction.MaxBatches)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	require.Len(t, cfg.Variants, 1)
	assert.Equal(t, "gpt-4.1", cfg.Variants[0].Model, "model inherited from llm")
	require.NoError(t, cfg.Validate())
}

func TestLoadFrom_Env(t *testing.T) {
	t.Setenv("LLM_API_KEY", "from-env")
	t.Setenv("EXTRACTION_MAX_BATCHES", "2")

	cfg, err := LoadFrom(newViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 2, cfg.Extraction.MaxBatches)
}

func TestLoadFrom_Nil(t *testing.T) {
	_, err := LoadFrom(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadFrom(newViper(t, ""))
		require.NoError(t, err)
		cfg.LLM.APIKey = "sk-test"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.LLM.APIKey = "" }, wantErr: "llm.api_key"},
		{name: "zero batches", mutate: func(c *Config) { c.Extraction.MaxBatches = 0 }, wantErr: "max_batches"},
		{name: "bad api", mutate: func(c *Config) { c.Variants[0].API = "grpc" }, wantErr: "variants[0].api"},
		{name: "bad cache", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: "cache.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

func TestValidateServe(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, ""))
	require.NoError(t, err)
	cfg.LLM.APIKey = "sk-test"
	require.NoError(t, cfg.ValidateServe())

	cfg.Share.Secret = "short"
	assert.ErrorContains(t, cfg.ValidateServe(), "share.secret")

	cfg.Share.Secret = ""
	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.ValidateServe(), "server.port")
}
