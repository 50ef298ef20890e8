package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/commuteai/agents/internal/api/response"
	"github.com/commuteai/agents/internal/enhance"
)

// Enhancer suggests route options between two locations.
type Enhancer interface {
	Enhance(ctx context.Context, req *enhance.Request) (*enhance.Response, error)
}

// EnhanceHandler handles the route enhancement endpoint.
type EnhanceHandler struct {
	agent  Enhancer
	logger zerolog.Logger
}

// NewEnhanceHandler creates a new EnhanceHandler.
func NewEnhanceHandler(agent Enhancer, logger zerolog.Logger) *EnhanceHandler {
	return &EnhanceHandler{
		agent:  agent,
		logger: logger.With().Str("handler", "enhance").Logger(),
	}
}

// Enhance handles POST /api/v1/agents/enhance.
func (h *EnhanceHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req enhance.Request
	if err := decodeJSON(w, r, &req); err != nil {
		response.UnprocessableEntity(w, r, malformedDetail(err))
		return
	}

	resp, err := h.agent.Enhance(r.Context(), &req)
	if err != nil {
		writeAgentError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, resp)
}
