package api

import (
	"net/http"
	"time"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/api/respond"
)

// HealthStatus reports overall health and the names of failing dependencies.
type HealthStatus interface {
	IsHealthy() bool
	Down() []string
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	status HealthStatus
}

// NewHealthHandler creates a new health handler. A nil status always reports healthy.
func NewHealthHandler(status HealthStatus) *HealthHandler { return &HealthHandler{status: status} }

// CheckHealth handles GET /api/health. It returns 200 when healthy and 503
// otherwise so HTTP health probes and the client's HealthPing agree.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	code, status := http.StatusOK, "healthy"
	var down []string
	if h.status != nil && !h.status.IsHealthy() {
		code, status = http.StatusServiceUnavailable, "unhealthy"
		down = h.status.Down()
	}
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if len(down) > 0 {
		response["down"] = down
	}
	respond.WriteJSON(w, code, response)
}
