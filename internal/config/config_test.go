package config_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commuteai/agents/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.False(t, cfg.OTelEnabled)
	assert.Empty(t, cfg.RedisURL)

	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey())
	assert.Empty(t, cfg.LLM.Model())
	assert.Equal(t, "json_schema", cfg.LLM.ResponseFormat)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)

	assert.False(t, cfg.Weather.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Weather.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Weather.CacheTTL)
	assert.InDelta(t, 60.1699, cfg.Weather.DefaultLat, 1e-9)
	assert.InDelta(t, 24.9384, cfg.Weather.DefaultLon, 1e-9)
}

func TestLoad_OpenAI(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("OPENWEATHERMAP_API_KEY", "owm")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey())
	assert.Equal(t, "gpt-4o", cfg.LLM.Model())
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.Weather.Enabled())
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"missing groq key", map[string]string{}, "GROQ_API_KEY is required"},
		{"missing openai key", map[string]string{"LLM_PROVIDER": "openai", "GROQ_API_KEY": "x"}, "OPENAI_API_KEY is required"},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "mystery", "GROQ_API_KEY": "x"}, "invalid config"},
		{"unknown format", map[string]string{"LLM_RESPONSE_FORMAT": "xml", "GROQ_API_KEY": "x"}, "invalid config"},
		{"weather timeout", map[string]string{"WEATHER_TIMEOUT": "10s", "GROQ_API_KEY": "x"}, "WEATHER_TIMEOUT"},
		{"bad duration", map[string]string{"LLM_TIMEOUT": "soon", "GROQ_API_KEY": "x"}, "parse env config"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud", "GROQ_API_KEY": "x"}, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GROQ_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
