package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commuteai/agents/internal/api/handler"
	"github.com/commuteai/agents/internal/enhance"
	"github.com/commuteai/agents/internal/llm/llmtest"
)

func TestEnhanceHandler_Enhance(t *testing.T) {
	provider := llmtest.NewProvider(`{"options": [{"description": "Metro", "summary": "Take the metro west.", "stops": []}]}`)
	a, err := enhance.New(enhance.Config{Provider: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)
	h := handler.NewEnhanceHandler(a, zerolog.Nop())

	rec := post(t, h.Enhance, "/api/v1/agents/enhance", `{"start_location": "Kamppi", "end_location": "Tapiola"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp enhance.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Options, 1)
	assert.Equal(t, "Take the metro west.", resp.Options[0].Summary)
	assert.Equal(t, 1, provider.CallCount())
}

func TestEnhanceHandler_MissingLocation(t *testing.T) {
	provider := llmtest.NewProvider(`{"options": []}`)
	a, err := enhance.New(enhance.Config{Provider: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)
	h := handler.NewEnhanceHandler(a, zerolog.Nop())

	rec := post(t, h.Enhance, "/api/v1/agents/enhance", `{"start_location": "Kamppi"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "end_location", problem.Errors[0].Field)
	assert.Equal(t, "required", problem.Errors[0].Code)
	assert.Zero(t, provider.CallCount())
}
