package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"dispute-agent/internal/db"
	"dispute-agent/internal/dispute"
	"dispute-agent/internal/workflow"

	"github.com/rs/zerolog/log"
)

type DisputeResponse struct {
	Status        string `json:"status"`
	DisputeID     string `json:"dispute_id"`
	Message       string `json:"message"`
	RejectionCode string `json:"rejection_code,omitempty"`
	TerminalNode  string `json:"terminal_node,omitempty"`
}

// WebhookHandler receives dispute webhooks, applies issuer-style validation,
// and runs the adjudication workflow for accepted payloads.
func WebhookHandler(wf *workflow.Workflow, audit db.AuditSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload dispute.DisputePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if payload.DisputeID == "" {
			writeError(w, http.StatusBadRequest, "dispute_id is required")
			return
		}

		if rej := ValidateDispute(payload); rej != nil {
			audit.LogError(r.Context(), payload.DisputeID, "validation",
				fmt.Sprintf("[%s] %s", rej.Code, rej.Message), nil)

			// A rejection is a normal outcome, not a server error.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(DisputeResponse{
				Status:        "rejected",
				DisputeID:     payload.DisputeID,
				Message:       fmt.Sprintf("[%s] %s", rej.Code, rej.Message),
				RejectionCode: rej.Code,
			})
			return
		}

		state, err := wf.Run(r.Context(), payload)
		if err != nil {
			log.Error().Str("dispute_id", payload.DisputeID).Err(err).
				Msg("workflow run failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(DisputeResponse{
			Status:       "accepted",
			DisputeID:    payload.DisputeID,
			Message:      "Dispute received and processing initiated",
			TerminalNode: state.CurrentNode,
		})
	}
}
