// Package main provides the entrypoint for the commute agents API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/commuteai/agents/internal/api"
	"github.com/commuteai/agents/internal/api/handler"
	"github.com/commuteai/agents/internal/api/middleware"
	"github.com/commuteai/agents/internal/config"
	"github.com/commuteai/agents/internal/enhance"
	"github.com/commuteai/agents/internal/insight"
	"github.com/commuteai/agents/internal/itinerary"
	"github.com/commuteai/agents/internal/llm/openai"
	"github.com/commuteai/agents/internal/provider/resilience"
	"github.com/commuteai/agents/internal/telemetry"
	"github.com/commuteai/agents/internal/weather"
	"github.com/commuteai/agents/internal/weather/openweathermap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(log zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log = log.Level(cfg.Level()).With().
		Str("service", cfg.ServiceName).
		Str("version", Version).
		Logger()
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting commute agents API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.OTelEnabled {
		log.Info().Str("otlp_endpoint", cfg.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return fmt.Errorf("init provider metrics: %w", err)
	}

	registry := resilience.NewRegistry()

	llmClientCfg := resilience.DefaultClientConfig(cfg.LLM.Provider)
	llmClientCfg.Timeout = cfg.LLM.Timeout
	llmClientCfg.MaxRetries = uint64(cfg.LLM.MaxRetries)
	llmClientCfg.Registry = registry
	llmClientCfg.Logger = log

	provider, err := openai.New(openai.Config{
		Backend:        cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey(),
		BaseURL:        cfg.LLM.BaseURL(),
		Model:          cfg.LLM.Model(),
		ResponseFormat: openai.ResponseFormat(cfg.LLM.ResponseFormat),
		HTTPClient:     resilience.NewClient(llmClientCfg),
		Logger:         log,
		Metrics:        providerMetrics,
	})
	if err != nil {
		return fmt.Errorf("create llm provider: %w", err)
	}
	log.Info().Str("llm_provider", provider.Name()).Str("model", provider.Model()).Msg("llm provider initialized")

	var checks []handler.Check
	insightCfg := insight.Config{
		Provider: provider,
		DefaultLocation: itinerary.Coordinates{
			Latitude:  cfg.Weather.DefaultLat,
			Longitude: cfg.Weather.DefaultLon,
		},
		Logger: log,
	}

	if cfg.Weather.Enabled() {
		var cache weather.Cache
		if cfg.RedisURL != "" {
			redisCache, err := weather.NewRedisCacheFromURL(ctx, cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connect weather cache: %w", err)
			}
			defer func() { _ = redisCache.Close() }()
			cache = redisCache
			checks = append(checks, handler.Check{Name: "weather_cache", Probe: redisCache.Ping})
			log.Info().Msg("weather cache backed by redis")
		}

		weatherClientCfg := resilience.DefaultClientConfig(openweathermap.ProviderName)
		weatherClientCfg.Timeout = cfg.Weather.Timeout
		weatherClientCfg.MaxRetries = 1
		weatherClientCfg.Registry = registry
		weatherClientCfg.Logger = log

		insightCfg.Weather = weather.NewService(weather.ServiceConfig{
			Provider: openweathermap.NewClient(openweathermap.ClientConfig{
				APIKey:     cfg.Weather.APIKey,
				BaseURL:    cfg.Weather.BaseURL,
				HTTPClient: resilience.NewClient(weatherClientCfg),
				Logger:     log,
			}),
			Cache:           cache,
			Logger:          log,
			Metrics:         providerMetrics,
			Timeout:         cfg.Weather.Timeout,
			CacheTTL:        cfg.Weather.CacheTTL,
			StaleIfErrorTTL: cfg.Weather.StaleTTL,
		})
		log.Info().Msg("weather enrichment enabled")
	} else {
		log.Warn().Msg("OPENWEATHERMAP_API_KEY not set - insights are generated without weather")
	}

	insightAgent, err := insight.New(insightCfg)
	if err != nil {
		return err
	}
	enhanceAgent, err := enhance.New(enhance.Config{Provider: provider, Logger: log})
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		ServiceName:        cfg.ServiceName,
		Logger:             log,
		Metrics:            httpMetrics,
		Insight:            insightAgent,
		Enhance:            enhanceAgent,
		Registry:           registry,
		Checks:             checks,
		RequireTLS:         cfg.RequireTLS,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// WriteTimeout leaves room for a full LLM call plus retries.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout*time.Duration(cfg.LLM.MaxRetries+1) + cfg.Weather.Timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
