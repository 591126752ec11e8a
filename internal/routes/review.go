package routes

import (
	"encoding/json"
	"net/http"

	"dispute-agent/internal/db"

	"github.com/go-chi/chi/v5"
)

// ReviewQueueHandler lists cases awaiting a human decision.
func ReviewQueueHandler(q db.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cases, err := db.ListPendingReviews(r.Context(), q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cases)
	}
}

type reviewResolution struct {
	Status     string `json:"status"`
	ReviewedBy string `json:"reviewed_by"`
}

// ResolveReviewHandler records a specialist's verdict on a queued case.
func ResolveReviewHandler(q db.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID := chi.URLParam(r, "disputeID")

		var req reviewResolution
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		switch req.Status {
		case "approved", "rejected":
		default:
			writeError(w, http.StatusBadRequest, "status must be approved or rejected")
			return
		}
		if req.ReviewedBy == "" {
			writeError(w, http.StatusBadRequest, "reviewed_by is required")
			return
		}

		if err := db.UpdateReviewStatus(r.Context(), q, disputeID, req.Status, req.ReviewedBy); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"dispute_id": disputeID,
			"status":     req.Status,
		})
	}
}
