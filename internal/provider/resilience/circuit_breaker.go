// Package resilience wraps calls to upstream providers (the LLM backend,
// the weather API) in a circuit breaker with per-attempt timeouts and
// retries, and keeps a registry of their health for the ops endpoints.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig decides when calls to one provider are cut off.
type CircuitBreakerConfig struct {
	Name string

	// MinRequests is how many calls the breaker must see in the current
	// window before it may trip.
	MinRequests uint32

	// FailureRatio trips the breaker once failures/requests reaches it.
	FailureRatio float64

	// HalfOpenRequests is the number of probe calls let through after
	// OpenTimeout.
	HalfOpenRequests uint32

	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration

	// Window clears the counts periodically while closed. Zero keeps them
	// until the next state change.
	Window time.Duration

	// OnStateChange overrides the default transition log line.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig trips after half of at least five calls fail
// and probes again after a minute.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MinRequests:      5,
		FailureRatio:     0.5,
		HalfOpenRequests: 1,
		OpenTimeout:      time.Minute,
	}
}

// ShouldTrip reports whether counts cross the configured threshold.
func (c CircuitBreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// NewCircuitBreaker builds a breaker from cfg. Transitions are logged on
// log unless cfg.OnStateChange is set.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	onStateChange := cfg.OnStateChange
	if onStateChange == nil {
		onStateChange = func(name string, from, to gobreaker.State) {
			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Warn()
			}
			event.
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		}
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenRequests,
		Interval:      cfg.Window,
		Timeout:       cfg.OpenTimeout,
		ReadyToTrip:   cfg.ShouldTrip,
		OnStateChange: onStateChange,
		IsExcluded:    callerCancelled,
	})
}

// callerCancelled excludes calls abandoned by the caller from the counts.
func callerCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
