// Package models defines the JSON bodies of the agents API that are not
// agent inputs or outputs themselves.
package models

import (
	"time"

	"github.com/commuteai/agents/internal/itinerary"
)

// HealthStatus is the health of the service or one of its dependencies.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp marshals as RFC 3339 in UTC.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var parsed time.Time
	if err := parsed.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// ItinerariesResponse is the body of POST /api/v1/itineraries.
type ItinerariesResponse struct {
	Itineraries []itinerary.ItineraryWithInsight `json:"itineraries"`
}
