package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/commuteai/agents/internal/agent"
	"github.com/commuteai/agents/internal/api/middleware"
	"github.com/commuteai/agents/internal/api/models"
	"github.com/commuteai/agents/internal/api/response"
)

const (
	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 1 << 20

	// DefaultRetryAfter is sent when the generation backend is rate limited.
	DefaultRetryAfter = 30 * time.Second
)

var errEmptyBody = errors.New("request body is empty")

// decodeJSON decodes a single JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// malformedDetail describes a decode failure without echoing the body.
func malformedDetail(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errEmptyBody):
		return "Request body is empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "Request body is not valid JSON (unexpected end of input)"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("Request body is not valid JSON (at offset %d)", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("Field %s must be of type %s", typeErr.Field, typeErr.Type)
		}
		return fmt.Sprintf("Request body must be a JSON %s", typeErr.Type)
	case errors.As(err, &maxErr):
		return fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit)
	default:
		return "Request body could not be decoded"
	}
}

// writeAgentError maps an agent failure to a problem response. Model
// output never reaches the client.
func writeAgentError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var agentErr *agent.Error
	errors.As(err, &agentErr)

	if errors.Is(err, agent.ErrValidation) {
		var fields []models.FieldError
		if agentErr != nil {
			fields = make([]models.FieldError, len(agentErr.Fields))
			for i, f := range agentErr.Fields {
				fields[i] = models.FieldError{Field: f.Field, Message: f.Message, Code: f.Rule}
			}
		}
		response.BadRequest(w, r, "Request validation failed", fields)
		return
	}

	event := log.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context()))
	if agentErr != nil {
		event = event.Str("agent", agentErr.Agent).Str("op", agentErr.Op)
		if agentErr.RawLength > 0 {
			event = event.Int("raw_length", agentErr.RawLength)
		}
	}

	switch {
	case errors.Is(err, agent.ErrGenerationRateLimited):
		event.Msg("generation rate limited")
		response.ServiceUnavailable(w, r, "The insight service is busy. Please retry later.", DefaultRetryAfter)

	case errors.Is(err, agent.ErrGenerationUnavailable):
		event.Msg("generation unavailable")
		response.ServiceUnavailable(w, r, "The insight service is temporarily unavailable.", 0)

	default:
		event.Msg("agent execution failed")
		response.InternalError(w, r, "Insights could not be generated.")
	}
}
