// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// MaxWeatherTimeout bounds WEATHER_TIMEOUT.
const MaxWeatherTimeout = 5 * time.Second

// Config holds the environment driven configuration of the API service.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"commute-agents"`
	Environment     string        `env:"APP_ENV" envDefault:"development"`
	Port            int           `env:"APP_PORT" envDefault:"8080" validate:"gt=0,lte=65535"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	RequireTLS         bool     `env:"REQUIRE_TLS" envDefault:"false"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`

	// RedisURL enables the shared weather cache when set.
	RedisURL string `env:"REDIS_URL"`

	LLM     LLMConfig
	Weather WeatherConfig
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider       string        `env:"LLM_PROVIDER" envDefault:"groq" validate:"oneof=groq openai"`
	Timeout        time.Duration `env:"LLM_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	MaxRetries     int           `env:"LLM_MAX_RETRIES" envDefault:"2" validate:"gte=0"`
	ResponseFormat string        `env:"LLM_RESPONSE_FORMAT" envDefault:"json_schema" validate:"oneof=json_schema json_object text"`

	GroqAPIKey  string `env:"GROQ_API_KEY"`
	GroqModel   string `env:"GROQ_MODEL"`
	GroqBaseURL string `env:"GROQ_BASE_URL"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GroqAPIKey
}

// Model returns the model override of the selected provider, if any.
func (c LLMConfig) Model() string {
	if c.Provider == "openai" {
		return c.OpenAIModel
	}
	return c.GroqModel
}

// BaseURL returns the base URL override of the selected provider, if any.
func (c LLMConfig) BaseURL() string {
	if c.Provider == "openai" {
		return c.OpenAIBaseURL
	}
	return c.GroqBaseURL
}

// WeatherConfig configures the weather lookup used for enrichment.
type WeatherConfig struct {
	APIKey   string        `env:"OPENWEATHERMAP_API_KEY"`
	BaseURL  string        `env:"OPENWEATHERMAP_BASE_URL"`
	Timeout  time.Duration `env:"WEATHER_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	CacheTTL time.Duration `env:"WEATHER_CACHE_TTL" envDefault:"10m" validate:"gt=0"`
	StaleTTL time.Duration `env:"WEATHER_STALE_TTL" envDefault:"1h"`

	// Default position when an itinerary has no legs. Helsinki city centre.
	DefaultLat float64 `env:"WEATHER_DEFAULT_LAT" envDefault:"60.1699" validate:"gte=-90,lte=90"`
	DefaultLon float64 `env:"WEATHER_DEFAULT_LON" envDefault:"24.9384" validate:"gte=-180,lte=180"`
}

// Enabled reports whether weather enrichment is configured.
func (c WeatherConfig) Enabled() bool {
	return c.APIKey != ""
}

// Load reads a .env file when present, then parses the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if strings.TrimSpace(c.LLM.APIKey()) == "" {
		return fmt.Errorf("%s_API_KEY is required when LLM_PROVIDER is %s", strings.ToUpper(c.LLM.Provider), c.LLM.Provider)
	}
	if c.Weather.Timeout > MaxWeatherTimeout {
		return fmt.Errorf("WEATHER_TIMEOUT must not exceed %s", MaxWeatherTimeout)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}
