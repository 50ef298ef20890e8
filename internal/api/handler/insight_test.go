package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commuteai/agents/internal/api/handler"
	"github.com/commuteai/agents/internal/api/models"
	"github.com/commuteai/agents/internal/insight"
	"github.com/commuteai/agents/internal/llm"
	"github.com/commuteai/agents/internal/llm/llmtest"
)

const itinerariesBody = `{
	"itineraries": [{
		"start": "2024-01-15T09:00:00Z",
		"end": "2024-01-15T09:30:00Z",
		"duration": 1800,
		"walk_distance": 200,
		"walk_time": 120,
		"legs": [{
			"mode": "BUS",
			"start": "2024-01-15T09:02:00Z",
			"end": "2024-01-15T09:30:00Z",
			"duration": 1680,
			"distance": 14800,
			"from_place": {"coordinates": {"latitude": 60.1699, "longitude": 24.9384}, "name": "Kamppi"},
			"to_place": {"coordinates": {"latitude": 60.2055, "longitude": 24.6559}, "name": "Espoo"},
			"route": {"short_name": "550", "long_name": "Itäkeskus - Westendinasema"}
		}]
	}],
	"user_preferences": [{"prompt": "I prefer fewer transfers"}]
}`

const oneInsight = `{"itinerary_insights": [{"ai_insight": "Direct bus.", "leg_insights": [{"ai_insight": "Ride 550."}]}]}`

func newInsightHandler(t *testing.T, provider llm.Provider) *handler.InsightHandler {
	t.Helper()
	a, err := insight.New(insight.Config{Provider: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return handler.NewInsightHandler(a, zerolog.Nop())
}

func post(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	return problem
}

func TestInsightHandler_GenerateInsights(t *testing.T) {
	h := newInsightHandler(t, llmtest.NewProvider(oneInsight))

	rec := post(t, h.GenerateInsights, "/api/v1/insight/itineraries", itinerariesBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp insight.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.ItineraryInsights, 1)
	assert.Equal(t, "Direct bus.", resp.ItineraryInsights[0].AIInsight)
}

func TestInsightHandler_AnnotateItineraries(t *testing.T) {
	h := newInsightHandler(t, llmtest.NewProvider(oneInsight))

	rec := post(t, h.AnnotateItineraries, "/api/v1/itineraries", itinerariesBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Itineraries []struct {
			Duration  int    `json:"duration"`
			AIInsight string `json:"ai_insight"`
			Legs      []struct {
				Mode      string `json:"mode"`
				AIInsight string `json:"ai_insight"`
			} `json:"legs"`
		} `json:"itineraries"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Itineraries, 1)
	it := resp.Itineraries[0]
	assert.Equal(t, 1800, it.Duration)
	assert.Equal(t, "Direct bus.", it.AIInsight)
	require.Len(t, it.Legs, 1)
	assert.Equal(t, "BUS", it.Legs[0].Mode)
	assert.Equal(t, "Ride 550.", it.Legs[0].AIInsight)
}

func TestInsightHandler_MalformedBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"empty", "", "empty"},
		{"syntax", `{"itineraries": ]}`, "not valid JSON"},
		{"truncated", `{"itineraries": [`, "unexpected end"},
		{"wrong type", `{"itineraries": "soon"}`, "itineraries"},
		{"trailing value", `{} {}`, "could not be decoded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := llmtest.NewProvider(oneInsight)
			h := newInsightHandler(t, provider)

			rec := post(t, h.GenerateInsights, "/api/v1/insight/itineraries", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeMalformed, problem.Type)
			assert.Contains(t, problem.Detail, tt.detail)
			assert.Zero(t, provider.CallCount())
		})
	}
}

func TestInsightHandler_ValidationError(t *testing.T) {
	provider := llmtest.NewProvider(oneInsight)
	h := newInsightHandler(t, provider)

	rec := post(t, h.GenerateInsights, "/api/v1/insight/itineraries", `{"itineraries": []}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.Equal(t, "/api/v1/insight/itineraries", problem.Instance)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "itineraries", problem.Errors[0].Field)
	assert.Equal(t, "min", problem.Errors[0].Code)
	assert.Zero(t, provider.CallCount())
}

func TestInsightHandler_GenerationErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		retryAfter string
	}{
		{"rate limited", llm.NewStatusError("fake", http.StatusTooManyRequests, assert.AnError), http.StatusServiceUnavailable, "30"},
		{"unavailable", llm.NewStatusError("fake", http.StatusBadGateway, assert.AnError), http.StatusServiceUnavailable, ""},
		{"rejected", llm.NewStatusError("fake", http.StatusUnauthorized, assert.AnError), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newInsightHandler(t, llmtest.NewFailingProvider(tt.err))

			rec := post(t, h.GenerateInsights, "/api/v1/insight/itineraries", itinerariesBody)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			problem := decodeProblem(t, rec)
			assert.NotContains(t, problem.Detail, assert.AnError.Error())
		})
	}
}

func TestInsightHandler_ProcessingErrorHidesModelOutput(t *testing.T) {
	h := newInsightHandler(t, llmtest.NewProvider("I cannot help with SECRET-ROUTE-NOTES"))

	rec := post(t, h.AnnotateItineraries, "/api/v1/itineraries", itinerariesBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SECRET-ROUTE-NOTES")
	problem := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeInternal, problem.Type)
}
