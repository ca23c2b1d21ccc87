package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Check names one dependency probed by Readyz.
type Check struct {
	Name    string
	Checker HealthChecker
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	checks []Check
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
// A check with a nil Checker is reported as "not configured" and does not
// fail readiness.
func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks, logger: slog.Default()}
}

// WithLogger sets the logger used for failed checks.
func (h *HealthHandler) WithLogger(logger *slog.Logger) *HealthHandler {
	h.logger = logger
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint.
// It returns 200 if the server is running, without dependency checks.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe endpoint.
// It returns 200 only if every configured dependency answers a ping.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true

	for _, check := range h.checks {
		if check.Checker == nil {
			results[check.Name] = "not configured"
			continue
		}
		if err := check.Checker.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "check", check.Name, "error", err)
			results[check.Name] = "unavailable"
			healthy = false
			continue
		}
		results[check.Name] = "ok"
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{
		Status: status,
		Checks: results,
	})
}
