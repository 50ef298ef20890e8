package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/commuteai/agents/internal/telemetry"
)

var errEmptyResponse = errors.New("provider returned no condition")

// MaxTimeout is the upper bound on a single provider lookup.
const MaxTimeout = 5 * time.Second

// Provider is an upstream source of current weather.
type Provider interface {
	// GetCurrentWeather fetches current weather for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Condition, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider

	// Cache defaults to a MemoryCache.
	Cache Cache

	Logger  zerolog.Logger
	Metrics *telemetry.ProviderMetrics

	// Timeout bounds each provider call (default and maximum: MaxTimeout).
	Timeout time.Duration

	// CacheTTL is how long a lookup is served from cache (default: 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the cache cell size in degrees (default: 0.1).
	CacheGridSize float64

	// StaleIfErrorTTL is how long an entry may stand in for a failing
	// provider (default: 1 hour).
	StaleIfErrorTTL time.Duration
}

// Service looks up current weather through a Provider with grid-cell
// caching. Concurrent lookups for the same cell share one provider call.
type Service struct {
	provider        Provider
	cache           Cache
	logger          zerolog.Logger
	metrics         *telemetry.ProviderMetrics
	timeout         time.Duration
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration

	group singleflight.Group
}

// NewService creates a weather service.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1 // ~11km at the equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}
	if staleIfErrorTTL < cacheTTL {
		staleIfErrorTTL = cacheTTL
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}

	return &Service{
		provider:        cfg.Provider,
		cache:           cache,
		logger:          cfg.Logger.With().Str("component", "weather").Str("provider", cfg.Provider.Name()).Logger(),
		metrics:         cfg.Metrics,
		timeout:         timeout,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetCurrentWeather returns the current weather at a location. Errors other
// than ErrInvalidCoordinates wrap ErrUnavailable.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Condition, error) {
	if !validCoordinates(lat, lon) {
		return nil, ErrInvalidCoordinates
	}

	key := s.cacheKey(lat, lon)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("weather cache read failed")
		cached, ok = nil, false
	}
	if ok && time.Since(cached.FetchedAt) < s.cacheTTL {
		s.metrics.RecordCacheHit(s.provider.Name(), "current")
		condition := cached.Condition
		return &condition, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), "current")

	result := s.group.DoChan(key, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx), key, lat, lon, cached)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		condition := *res.Val.(*Condition)
		return &condition, nil
	}
}

// fetch calls the provider and refreshes the cache. On failure it falls back
// to stale, which may be nil.
func (s *Service) fetch(ctx context.Context, key string, lat, lon float64, stale *Entry) (*Condition, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("fetching weather from provider")

	start := time.Now()
	condition, err := s.provider.GetCurrentWeather(callCtx, lat, lon)
	if err == nil && condition == nil {
		err = errEmptyResponse
	}
	s.metrics.RecordRequest(s.provider.Name(), "current", time.Since(start), err)

	if err != nil {
		if stale != nil && time.Since(stale.FetchedAt) < s.staleIfErrorTTL {
			s.logger.Warn().Err(err).
				Time("fetched_at", stale.FetchedAt).
				Msg("serving stale weather due to provider error")
			c := stale.Condition
			return &c, nil
		}

		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("failed to fetch weather")
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, s.provider.Name(), err)
	}

	entry := &Entry{Condition: *condition, FetchedAt: time.Now()}
	if err := s.cache.Set(ctx, key, entry, s.staleIfErrorTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("weather cache write failed")
	}

	return condition, nil
}

// cacheKey groups nearby points into one grid cell.
func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.2f:%.2f", gridLat, gridLon)
}
