// Package itinerary defines the transit journey models that insight agents
// reason about. The models mirror the payloads produced by the trip planner
// and are validated with struct tags before they reach an agent.
package itinerary

import (
	"time"
)

// TransportMode is the mode of travel for a single leg.
type TransportMode string

const (
	ModeWalk    TransportMode = "WALK"
	ModeBicycle TransportMode = "BICYCLE"
	ModeCar     TransportMode = "CAR"
	ModeTram    TransportMode = "TRAM"
	ModeSubway  TransportMode = "SUBWAY"
	ModeRail    TransportMode = "RAIL"
	ModeBus     TransportMode = "BUS"
	ModeFerry   TransportMode = "FERRY"
)

// IsTransit reports whether the mode is a scheduled public transport mode,
// i.e. one where a Route is normally attached to the leg.
func (m TransportMode) IsTransit() bool {
	switch m {
	case ModeWalk, ModeBicycle, ModeCar:
		return false
	default:
		return true
	}
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Place is a named or anonymous location.
type Place struct {
	Coordinates Coordinates `json:"coordinates"`
	Name        *string     `json:"name,omitempty"`
}

// Route describes the transit line serving a leg.
type Route struct {
	// ShortName is the public line identifier, e.g. a bus number.
	ShortName string `json:"short_name"`

	// LongName is the full line name.
	LongName string `json:"long_name"`

	Description *string `json:"description,omitempty"`
}

// Leg is one mode-homogeneous segment of a journey.
type Leg struct {
	Mode  TransportMode `json:"mode" validate:"required,oneof=WALK BICYCLE CAR TRAM SUBWAY RAIL BUS FERRY"`
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end" validate:"gtefield=Start"`

	// Duration in seconds.
	Duration int `json:"duration" validate:"gte=0"`

	// Distance in meters.
	Distance float64 `json:"distance" validate:"gte=0"`

	FromPlace Place  `json:"from_place"`
	ToPlace   Place  `json:"to_place"`
	Route     *Route `json:"route,omitempty"`
}

// Itinerary is a complete journey from origin to destination.
type Itinerary struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Duration is the total journey time in seconds.
	Duration int `json:"duration" validate:"gte=0"`

	// WalkDistance is the total walking distance in meters.
	WalkDistance float64 `json:"walk_distance" validate:"gte=0"`

	// WalkTime is the total walking time in seconds.
	WalkTime int `json:"walk_time" validate:"gte=0"`

	Legs []Leg `json:"legs" validate:"dive"`
}

// Origin returns the departure place of the first leg.
// The boolean is false when the itinerary has no legs.
func (it Itinerary) Origin() (Place, bool) {
	if len(it.Legs) == 0 {
		return Place{}, false
	}
	return it.Legs[0].FromPlace, true
}

// Transfers returns the number of changes between transit vehicles.
func (it Itinerary) Transfers() int {
	transit := 0
	for _, leg := range it.Legs {
		if leg.Mode.IsTransit() {
			transit++
		}
	}
	if transit == 0 {
		return 0
	}
	return transit - 1
}

// Preference is a free-text preference stated by the traveller.
// It is passed to the model verbatim and never interpreted.
type Preference struct {
	Prompt string `json:"prompt" validate:"required"`
}

// LegWithInsight is a leg annotated with model commentary.
type LegWithInsight struct {
	Leg
	AIInsight string `json:"ai_insight"`
}

// ItineraryWithInsight is an itinerary whose legs and whole journey carry
// model commentary.
type ItineraryWithInsight struct {
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Duration     int              `json:"duration"`
	WalkDistance float64          `json:"walk_distance"`
	WalkTime     int              `json:"walk_time"`
	Legs         []LegWithInsight `json:"legs"`
	AIInsight    string           `json:"ai_insight"`
}

// WithInsight attaches an itinerary-level insight and per-leg insights.
// Leg insights are matched by position; legs without a counterpart get an
// empty insight and surplus leg insights are ignored.
func (it Itinerary) WithInsight(insight string, legInsights []string) ItineraryWithInsight {
	legs := make([]LegWithInsight, len(it.Legs))
	for i, leg := range it.Legs {
		legs[i] = LegWithInsight{Leg: leg}
		if i < len(legInsights) {
			legs[i].AIInsight = legInsights[i]
		}
	}

	return ItineraryWithInsight{
		Start:        it.Start,
		End:          it.End,
		Duration:     it.Duration,
		WalkDistance: it.WalkDistance,
		WalkTime:     it.WalkTime,
		Legs:         legs,
		AIInsight:    insight,
	}
}
