// Package handler provides the HTTP handlers of the agents API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/commuteai/agents/internal/api/models"
	"github.com/commuteai/agents/internal/api/response"
	"github.com/commuteai/agents/internal/provider/resilience"
)

// checkTimeout bounds each readiness probe.
const checkTimeout = 2 * time.Second

// Check probes one dependency. Probe returns nil when it is usable.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// OpsConfig configures the OpsHandler.
type OpsConfig struct {
	ServiceName string
	Version     string
	BuildTime   string
	Registry    *resilience.Registry
	Checks      []Check
}

// OpsHandler serves the banner, liveness, readiness and status endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// Root handles GET /.
func (h *OpsHandler) Root(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ServiceInfo{
		Message: h.cfg.ServiceName + " is running!",
		Version: h.cfg.Version,
	})
}

// HealthCheck handles GET /api/v1/health and GET /api/v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /api/v1/ops/ready. It fails when any
// dependency check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems, ok := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}
	status := http.StatusOK
	if !ok {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"subsystems": subsystems}
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /api/v1/ops/status: dependency checks plus the
// circuit breaker state of every upstream provider.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems, ok := h.runChecks(r.Context())

	overall := models.HealthStatusOK
	if !ok {
		overall = models.HealthStatusFail
	}

	providers := make([]models.ProviderStatus, 0, h.cfg.Registry.ProviderCount())
	for _, health := range h.cfg.Registry.GetAllHealth() {
		ps := providerStatus(health)
		if ps.Status != models.HealthStatusOK && overall == models.HealthStatusOK {
			overall = models.HealthStatusDegraded
		}
		providers = append(providers, ps)
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(h.now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) ([]models.SubsystemStatus, bool) {
	subsystems := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	ok := true
	for _, check := range h.cfg.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check.Probe(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: check.Name, Status: models.HealthStatusOK}
		if err != nil {
			ok = false
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}
	return subsystems, ok
}

func providerStatus(h *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            h.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        h.CircuitState.String(),
		ConsecutiveFailures: h.Counts.ConsecutiveFailures,
	}
	switch {
	case h.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case h.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if h.LastSuccessAt != nil {
		ts := models.Timestamp(*h.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if h.LastFailureAt != nil {
		ts := models.Timestamp(*h.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if h.LastError != "" {
		msg := h.LastError
		ps.Message = &msg
	}
	return ps
}
