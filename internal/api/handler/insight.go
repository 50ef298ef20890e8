package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/commuteai/agents/internal/api/models"
	"github.com/commuteai/agents/internal/api/response"
	"github.com/commuteai/agents/internal/insight"
	"github.com/commuteai/agents/internal/itinerary"
)

// InsightAgent generates itinerary insights.
type InsightAgent interface {
	Generate(ctx context.Context, req *insight.Request) (*insight.Response, error)
	Annotate(ctx context.Context, req *insight.Request) ([]itinerary.ItineraryWithInsight, error)
}

// InsightHandler handles the itinerary insight endpoints.
type InsightHandler struct {
	agent  InsightAgent
	logger zerolog.Logger
}

// NewInsightHandler creates a new InsightHandler.
func NewInsightHandler(agent InsightAgent, logger zerolog.Logger) *InsightHandler {
	return &InsightHandler{
		agent:  agent,
		logger: logger.With().Str("handler", "insight").Logger(),
	}
}

// GenerateInsights handles POST /api/v1/insight/itineraries. It returns the
// raw insights, one per itinerary.
func (h *InsightHandler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	var req insight.Request
	if err := decodeJSON(w, r, &req); err != nil {
		response.UnprocessableEntity(w, r, malformedDetail(err))
		return
	}

	resp, err := h.agent.Generate(r.Context(), &req)
	if err != nil {
		writeAgentError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// AnnotateItineraries handles POST /api/v1/itineraries. It returns the
// request itineraries with their insights attached.
func (h *InsightHandler) AnnotateItineraries(w http.ResponseWriter, r *http.Request) {
	var req insight.Request
	if err := decodeJSON(w, r, &req); err != nil {
		response.UnprocessableEntity(w, r, malformedDetail(err))
		return
	}

	itineraries, err := h.agent.Annotate(r.Context(), &req)
	if err != nil {
		writeAgentError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ItinerariesResponse{Itineraries: itineraries})
}
