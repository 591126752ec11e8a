package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"dispute-agent/internal/db"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// StatusHandler reports the terminal summary for one dispute.
func StatusHandler(q db.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID := chi.URLParam(r, "disputeID")
		if disputeID == "" {
			writeError(w, http.StatusBadRequest, "dispute id is required")
			return
		}

		record, err := db.GetDisputeRecord(r.Context(), q, disputeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusNotFound, "dispute "+disputeID+" not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(record)
	}
}

// AuditTrailHandler lists the full audit trail for one dispute.
func AuditTrailHandler(q db.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID := chi.URLParam(r, "disputeID")
		if disputeID == "" {
			writeError(w, http.StatusBadRequest, "dispute id is required")
			return
		}

		entries, err := db.ListAuditTrail(r.Context(), q, disputeID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"dispute_id": disputeID,
			"entries":    entries,
		})
	}
}
