// Package insight implements the agent that writes short natural-language
// commentary for each route option returned by the journey planner,
// optionally taking the traveller's preferences and the current weather
// into account.
package insight

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/commuteai/agents/internal/agent"
	"github.com/commuteai/agents/internal/itinerary"
	"github.com/commuteai/agents/internal/llm"
	"github.com/commuteai/agents/internal/weather"
)

//go:embed agent.yaml *.tmpl
var templates embed.FS

// ErrCountMismatch is the cause of the processing error returned when the
// model does not answer once per itinerary.
var ErrCountMismatch = errors.New("itinerary insight count does not match itinerary count")

// DefaultLocation is used for the weather lookup when no itinerary has a
// leg to take an origin from. Helsinki city centre.
var DefaultLocation = itinerary.Coordinates{Latitude: 60.1699, Longitude: 24.9384}

// Request is the insight agent input.
type Request struct {
	Itineraries     []itinerary.Itinerary  `json:"itineraries" validate:"required,min=1,dive"`
	UserPreferences []itinerary.Preference `json:"user_preferences,omitempty" validate:"omitempty,dive"`

	// WeatherConditions is filled by the agent when absent.
	WeatherConditions *weather.Condition `json:"weather_conditions,omitempty"`
}

// LegInsight is the commentary for one leg.
type LegInsight struct {
	AIInsight string `json:"ai_insight" validate:"required" jsonschema:"description=Short remark about this leg of the journey"`
}

// ItineraryInsight is the commentary for one itinerary.
type ItineraryInsight struct {
	AIInsight   string       `json:"ai_insight" validate:"required" jsonschema:"description=Concise insight about the whole route in two or three sentences"`
	LegInsights []LegInsight `json:"leg_insights" validate:"dive" jsonschema:"description=One entry per leg in leg order"`
}

// Response holds one ItineraryInsight per requested itinerary, in request
// order.
type Response struct {
	ItineraryInsights []ItineraryInsight `json:"itinerary_insights" validate:"required,dive" jsonschema:"description=One entry per route option in the order given"`
}

// WeatherLookup provides current weather for a position.
type WeatherLookup interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Condition, error)
}

// Config configures the insight Agent.
type Config struct {
	Provider llm.Provider

	// Weather is optional. Without it prompts carry only caller supplied
	// weather.
	Weather WeatherLookup

	// DefaultLocation overrides the package DefaultLocation when non-zero.
	DefaultLocation itinerary.Coordinates

	Validator *validator.Validate
	Logger    zerolog.Logger
}

// Agent generates itinerary insights.
type Agent struct {
	core            *agent.Agent[Request, Response]
	weather         WeatherLookup
	defaultLocation itinerary.Coordinates
	logger          zerolog.Logger
}

// New creates the insight agent.
func New(cfg Config) (*Agent, error) {
	a := &Agent{
		weather:         cfg.Weather,
		defaultLocation: cfg.DefaultLocation,
		logger:          cfg.Logger.With().Str("component", "insight").Logger(),
	}
	if a.defaultLocation == (itinerary.Coordinates{}) {
		a.defaultLocation = DefaultLocation
	}

	core, err := agent.New(agent.Definition[Request, Response]{
		Templates: templates,
		Enrich:    a.enrich,
		Vars:      promptVars,
		Check:     check,
	}, agent.Config{
		Provider:  cfg.Provider,
		Validator: cfg.Validator,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create insight agent: %w", err)
	}
	a.core = core

	return a, nil
}

// Generate returns one insight per itinerary of req, in order.
func (a *Agent) Generate(ctx context.Context, req *Request) (*Response, error) {
	return a.core.Execute(ctx, req)
}

// Annotate generates insights and attaches them to the request itineraries.
func (a *Agent) Annotate(ctx context.Context, req *Request) ([]itinerary.ItineraryWithInsight, error) {
	resp, err := a.core.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return Merge(req.Itineraries, resp), nil
}

// Merge attaches insights to itineraries by position.
func Merge(itineraries []itinerary.Itinerary, resp *Response) []itinerary.ItineraryWithInsight {
	out := make([]itinerary.ItineraryWithInsight, len(itineraries))
	for i, it := range itineraries {
		var insight ItineraryInsight
		if resp != nil && i < len(resp.ItineraryInsights) {
			insight = resp.ItineraryInsights[i]
		}

		legInsights := make([]string, len(insight.LegInsights))
		for j, li := range insight.LegInsights {
			legInsights[j] = li.AIInsight
		}
		out[i] = it.WithInsight(insight.AIInsight, legInsights)
	}
	return out
}

// enrich adds current weather at the journey origin. Lookup failures leave
// the request without weather.
func (a *Agent) enrich(ctx context.Context, req *Request) *Request {
	if a.weather == nil || req.WeatherConditions != nil {
		return req
	}

	at := a.defaultLocation
	if origin, ok := req.Itineraries[0].Origin(); ok {
		at = origin.Coordinates
	}

	cond, err := a.weather.GetCurrentWeather(ctx, at.Latitude, at.Longitude)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Float64("lat", at.Latitude).
			Float64("lon", at.Longitude).
			Msg("continuing without weather")
		return req
	}

	enriched := *req
	enriched.WeatherConditions = cond
	return &enriched
}

// promptVars exposes the transfer count of every itinerary and whether it
// is raining or snowing.
func promptVars(req *Request, vars map[string]any) {
	its, _ := vars["itineraries"].([]any)
	for i, v := range its {
		if m, ok := v.(map[string]any); ok && i < len(req.Itineraries) {
			m["transfers"] = req.Itineraries[i].Transfers()
		}
	}
	if req.WeatherConditions != nil {
		if m, ok := vars["weather_conditions"].(map[string]any); ok {
			m["wet"] = req.WeatherConditions.IsWet()
		}
	}
}

// check enforces one insight per itinerary.
func check(req *Request, resp *Response) error {
	if got, want := len(resp.ItineraryInsights), len(req.Itineraries); got != want {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, got, want)
	}
	return nil
}
