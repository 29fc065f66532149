// Package handler provides HTTP handlers for the nagarbus API.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/resilience"
)

// OpsHandler handles liveness and readiness.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates an OpsHandler. A nil registry means no guarded
// dependencies, which is always ready.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		now:       time.Now,
	}
}

// HealthCheck handles GET /health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /ready. Any open circuit fails readiness;
// a half-open one degrades it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:       models.HealthStatusOK,
		Time:         models.Timestamp(h.now()),
		Dependencies: []models.DependencyStatus{},
	}

	if h.registry != nil {
		for _, dep := range h.registry.AllHealth() {
			status := dependencyStatus(dep)
			ready.Dependencies = append(ready.Dependencies, status)

			switch {
			case status.Status == models.HealthStatusFail:
				ready.Status = models.HealthStatusFail
			case status.Status == models.HealthStatusDegraded && ready.Status == models.HealthStatusOK:
				ready.Status = models.HealthStatusDegraded
			}
		}
	}

	code := http.StatusOK
	if ready.Status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, ready)
}

func dependencyStatus(dep *resilience.DependencyHealth) models.DependencyStatus {
	status := models.DependencyStatus{
		Name:      dep.Name,
		Status:    models.HealthStatusOK,
		Circuit:   dep.CircuitState.String(),
		LastError: dep.LastError,
	}
	switch dep.CircuitState {
	case gobreaker.StateOpen:
		status.Status = models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		status.Status = models.HealthStatusDegraded
	}
	if dep.LastSuccessAt != nil {
		ts := models.Timestamp(*dep.LastSuccessAt)
		status.LastSuccessAt = &ts
	}
	if dep.LastFailureAt != nil {
		ts := models.Timestamp(*dep.LastFailureAt)
		status.LastFailureAt = &ts
	}
	return status
}
