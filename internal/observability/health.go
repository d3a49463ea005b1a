package observability

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the /api/health response body.
type HealthStatus struct {
	Status    string          `json:"status"`
	Service   string          `json:"service"`
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Services  map[string]bool `json:"services,omitempty"`
}

// HealthCheckHandler reports liveness along with which upstream credentials
// are configured. The booleans reflect configuration only; no upstream call
// is made on this path.
func HealthCheckHandler(agentConfigured, recognitionConfigured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "healthy",
			Service:   "voicebridge",
			Version:   "1.0.0",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services: map[string]bool{
				"agent":       agentConfigured,
				"recognition": recognitionConfigured,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}
