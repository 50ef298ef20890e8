package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commuteai/agents/internal/api"
	"github.com/commuteai/agents/internal/api/models"
	"github.com/commuteai/agents/internal/enhance"
	"github.com/commuteai/agents/internal/insight"
	"github.com/commuteai/agents/internal/llm/llmtest"
	"github.com/commuteai/agents/internal/provider/resilience"
)

const insightJSON = `{"itinerary_insights": [{"ai_insight": "Short walk then tram.", "leg_insights": []}]}`

const requestJSON = `{"itineraries": [{"start": "2024-01-15T09:00:00Z", "end": "2024-01-15T09:20:00Z", "duration": 1200, "walk_distance": 300, "walk_time": 240, "legs": []}]}`

func newTestRouter(t *testing.T, cfg api.RouterConfig) http.Handler {
	t.Helper()
	cfg.Version = "test"
	cfg.BuildTime = "2024-01-01T00:00:00Z"
	cfg.Logger = zerolog.New(io.Discard)
	return api.NewRouter(cfg)
}

func newAgentsRouter(t *testing.T, content string) http.Handler {
	t.Helper()
	provider := llmtest.NewProvider(content)

	insightAgent, err := insight.New(insight.Config{Provider: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)
	enhanceAgent, err := enhance.New(enhance.Config{Provider: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)

	return newTestRouter(t, api.RouterConfig{
		Insight:  insightAgent,
		Enhance:  enhanceAgent,
		Registry: resilience.NewRegistry(),
	})
}

func TestRouter_Root(t *testing.T) {
	router := newTestRouter(t, api.RouterConfig{ServiceName: "commute-agents"})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var info models.ServiceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "commute-agents is running!", info.Message)
	assert.Equal(t, "test", info.Version)
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, api.RouterConfig{})

	for _, path := range []string{"/api/v1/health", "/api/v1/ops/health"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

			var health models.Health
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
			assert.Equal(t, models.HealthStatusOK, health.Status)
		})
	}
}

func TestRouter_SystemStatus(t *testing.T) {
	router := newAgentsRouter(t, insightJSON)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
}

func TestRouter_GenerateInsights(t *testing.T) {
	router := newAgentsRouter(t, insightJSON)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/insight/itineraries", strings.NewReader(requestJSON))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp insight.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.ItineraryInsights, 1)
	assert.Equal(t, "Short walk then tram.", resp.ItineraryInsights[0].AIInsight)
}

func TestRouter_AnnotateItineraries(t *testing.T) {
	router := newAgentsRouter(t, insightJSON)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/itineraries", strings.NewReader(requestJSON))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ItinerariesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Itineraries, 1)
	assert.Equal(t, "Short walk then tram.", resp.Itineraries[0].AIInsight)
	assert.Equal(t, 1200, resp.Itineraries[0].Duration)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	router := newAgentsRouter(t, insightJSON)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/itineraries", strings.NewReader("itineraries=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_EnhanceValidation(t *testing.T) {
	router := newAgentsRouter(t, `{"options": []}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents/enhance", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Len(t, problem.Errors, 2)
	assert.Equal(t, w.Header().Get("X-Request-Id"), problem.TraceID)
}

func TestRouter_AgentRoutesDisabledWithoutAgents(t *testing.T) {
	router := newTestRouter(t, api.RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/itineraries", strings.NewReader(requestJSON))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, api.RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
	assert.Equal(t, "/api/v1/unknown", problem.Instance)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newAgentsRouter(t, insightJSON)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/itineraries", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeMethodNotAllowed, problem.Type)
}

func TestRouter_RequireTLS(t *testing.T) {
	router := newTestRouter(t, api.RouterConfig{RequireTLS: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, api.RouterConfig{CORSAllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/itineraries", http.NoBody)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
