// Package enhance implements the agent that proposes annotated route
// options between two free-text locations.
package enhance

import (
	"context"
	"embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/commuteai/agents/internal/agent"
	"github.com/commuteai/agents/internal/llm"
)

//go:embed agent.yaml *.tmpl
var templates embed.FS

// Request names the journey end points.
type Request struct {
	StartLocation string `json:"start_location" validate:"required"`
	EndLocation   string `json:"end_location" validate:"required"`
}

// Stop is a point the traveller passes.
type Stop struct {
	Location      string   `json:"location" validate:"required"`
	ArrivalTime   string   `json:"arrival_time" validate:"required" jsonschema:"description=Approximate arrival time as HH:MM"`
	DepartureTime string   `json:"departure_time" validate:"required" jsonschema:"description=Approximate departure time as HH:MM"`
	Landmarks     []string `json:"landmarks"`
}

// RouteOption is one suggested way to travel.
type RouteOption struct {
	Description string `json:"description" validate:"required"`
	Summary     string `json:"summary" validate:"required" jsonschema:"description=One sentence summary of the option"`
	Stops       []Stop `json:"stops" validate:"dive"`
}

// Response lists the suggested options.
type Response struct {
	Options []RouteOption `json:"options" validate:"required,min=1,dive"`
}

// Config configures the enhance Agent.
type Config struct {
	Provider  llm.Provider
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// Agent proposes route options.
type Agent struct {
	core *agent.Agent[Request, Response]
}

// New creates the enhance agent.
func New(cfg Config) (*Agent, error) {
	core, err := agent.New(agent.Definition[Request, Response]{
		Templates: templates,
	}, agent.Config{
		Provider:  cfg.Provider,
		Validator: cfg.Validator,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create enhance agent: %w", err)
	}
	return &Agent{core: core}, nil
}

// Enhance suggests route options for req.
func (a *Agent) Enhance(ctx context.Context, req *Request) (*Response, error) {
	return a.core.Execute(ctx, req)
}
