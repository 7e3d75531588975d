package healthprobe

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// HealthChecker provides liveness and readiness checks. Readiness is the
// conjunction of named components, each marked ready once it has produced
// its first result.
type HealthChecker struct {
	startTime time.Time

	mu         sync.RWMutex
	components []string
	ready      map[string]bool
}

// New creates a HealthChecker waiting on the given components. With no
// components the checker is not ready until SetReady(true).
func New(components ...string) *HealthChecker {
	if len(components) == 0 {
		components = []string{"app"}
	}

	return &HealthChecker{
		startTime:  time.Now(),
		components: components,
		ready:      make(map[string]bool, len(components)),
	}
}

// MarkReady records that component has come up. Unknown names are ignored.
func (h *HealthChecker) MarkReady(component string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if slices.Contains(h.components, component) {
		h.ready[component] = true
	}
}

// SetReady marks every component ready or not ready at once.
func (h *HealthChecker) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.components {
		h.ready[c] = ready
	}
}

// Pending returns the components that are not ready yet.
func (h *HealthChecker) Pending() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pending := []string{}
	for _, c := range h.components {
		if !h.ready[c] {
			pending = append(pending, c)
		}
	}
	return pending
}

// IsReady reports whether every component is ready.
func (h *HealthChecker) IsReady() bool {
	return len(h.Pending()) == 0
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime"`
	Message string   `json:"message,omitempty"`
	Pending []string `json:"pending,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if ready, 503 Service Unavailable if not.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending := h.Pending()
		if len(pending) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "waiting for components",
				Pending: pending,
			})
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
