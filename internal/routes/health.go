package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"dispute-agent/internal/db"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Database    string `json:"database,omitempty"`
	VectorStore string `json:"vector_store,omitempty"`
}

// Pinger is any dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthHandler(serviceName string, q db.Querier, vector Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Service: serviceName,
		}

		if q != nil {
			if _, err := q.Exec(r.Context(), "SELECT 1"); err != nil {
				resp.Status = "degraded"
				resp.Database = "unhealthy: " + err.Error()
			} else {
				resp.Database = "healthy"
			}
		}

		if vector != nil {
			if err := vector.Ping(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.VectorStore = "unhealthy: " + err.Error()
			} else {
				resp.VectorStore = "healthy"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
