package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commuteai/agents/internal/api/middleware"
	"github.com/commuteai/agents/internal/api/models"
	"github.com/commuteai/agents/internal/api/response"
)

// requestWithID returns a request whose context went through RequestID.
func requestWithID(t *testing.T, method, path string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req_fixed")

	var processed *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	})).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, processed)
	return processed
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestJSON(t *testing.T) {
	req := requestWithID(t, http.MethodGet, "/")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req_fixed", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"hello"}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusAccepted, nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Body.String())
}

func TestProblemResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request)
		status int
		typ    string
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			response.BadRequest(w, r, "invalid", []models.FieldError{{Field: "itineraries", Message: "is required"}})
		}, http.StatusBadRequest, models.ProblemTypeValidation},
		{"unprocessable", func(w http.ResponseWriter, r *http.Request) {
			response.UnprocessableEntity(w, r, "bad json")
		}, http.StatusUnprocessableEntity, models.ProblemTypeMalformed},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			response.NotFound(w, r, "nothing here")
		}, http.StatusNotFound, models.ProblemTypeNotFound},
		{"method not allowed", func(w http.ResponseWriter, r *http.Request) {
			response.MethodNotAllowed(w, r, "nope")
		}, http.StatusMethodNotAllowed, models.ProblemTypeMethodNotAllowed},
		{"internal", func(w http.ResponseWriter, r *http.Request) {
			response.InternalError(w, r, "oops")
		}, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) {
			response.ServiceUnavailable(w, r, "later", 0)
		}, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithID(t, http.MethodPost, "/api/v1/insight/itineraries")
			rec := httptest.NewRecorder()

			tt.write(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "req_fixed", p.TraceID)
			assert.Equal(t, "/api/v1/insight/itineraries", p.Instance)
		})
	}
}

func TestServiceUnavailable_RetryAfter(t *testing.T) {
	req := requestWithID(t, http.MethodPost, "/")
	rec := httptest.NewRecorder()

	response.ServiceUnavailable(rec, req, "rate limited", 1500*time.Millisecond)

	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}
