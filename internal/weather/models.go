// Package weather looks up current weather conditions for a location so
// that insight agents can mention them.
package weather

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when no weather could be obtained: the
	// provider failed, timed out or returned an unusable payload, and no
	// stale cache entry could stand in.
	ErrUnavailable = errors.New("weather unavailable")

	// ErrInvalidCoordinates is returned for positions outside WGS84 bounds.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Condition is the current weather at one location.
type Condition struct {
	// Temperature in degrees Celsius.
	Temperature float64 `json:"temperature"`

	Description string `json:"description"`

	// Humidity in percent.
	Humidity int `json:"humidity" validate:"gte=0,lte=100"`

	// WindSpeed in m/s.
	WindSpeed float64 `json:"wind_speed" validate:"gte=0"`

	// Precipitation in mm/h, zero when the provider reports none.
	Precipitation float64 `json:"precipitation" validate:"gte=0"`

	Timestamp time.Time `json:"timestamp"`
}

// IsWet reports whether any precipitation is falling.
func (c Condition) IsWet() bool {
	return c.Precipitation > 0
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
