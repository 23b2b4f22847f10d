package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kfreiman/careerlink/internal/backend"
)

// ReadinessProbeTimeout bounds the backend health probe.
const ReadinessProbeTimeout = 3 * time.Second

// HealthResponse represents the JSON response for health endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

func writeHealth(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler checks if the server is running and accepting requests.
// Always returns 200 OK.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.DebugContext(r.Context(), "liveness check requested")

	writeHealth(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
		Version:   ServerVersion,
	})
}

// ReadinessHandler returns 200 OK when the backend health endpoint answers
// 2xx, 503 otherwise.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.logger.DebugContext(ctx, "readiness check requested")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
		Version:   ServerVersion,
		Checks:    make(map[string]string),
	}

	if err := s.probeBackend(ctx); err != nil {
		response.Status = "unhealthy"
		response.Checks["backend"] = "unreachable"
		response.Details = map[string]string{"backend": err.Error()}
		writeHealth(w, http.StatusServiceUnavailable, response)
		s.logger.ErrorContext(ctx, "readiness check failed",
			"status", "unhealthy",
			"error", err,
		)
		return
	}

	response.Checks["backend"] = "reachable"
	writeHealth(w, http.StatusOK, response)
	s.logger.DebugContext(ctx, "readiness check completed", "status", "healthy")
}

func (s *Server) probeBackend(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ReadinessProbeTimeout)
	defer cancel()

	resp, err := s.backend.Send(ctx, backend.Request{
		Method:   http.MethodGet,
		Endpoint: s.config.HealthPath,
	})
	if err != nil {
		return err
	}
	return backend.CheckStatus(s.config.HealthPath, resp)
}
