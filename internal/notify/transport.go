package notify

import (
	"context"
	"fmt"
	"strings"
)

// Message is one customer notification about a dispute.
type Message struct {
	To           string
	DisputeID    string
	CustomerName string
	Decision     string // accept | reject | escalate | under_review
	Reasoning    string
	Amount       float64
	Currency     string
}

// Result reports a send outcome. Transports return errors only for their own
// failures; the chain converts exhaustion into a failed Result.
type SendResult struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Transport delivers one notification.
type Transport interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
	Name() string
}

// Subject builds the notification subject line.
func (m Message) Subject() string {
	if m.Decision == "under_review" {
		return fmt.Sprintf("Dispute Under Review - %s", m.DisputeID)
	}
	return fmt.Sprintf("Dispute Resolution - %s", m.DisputeID)
}

// Body renders the notification text. The under_review variant deliberately
// never claims a final decision.
func (m Message) Body() string {
	name := m.CustomerName
	if name == "" {
		name = "Customer"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dear %s,\n\n", name)

	switch m.Decision {
	case "under_review":
		fmt.Fprintf(&sb, "Your dispute %s for %.2f %s is being reviewed by a specialist.\n\n", m.DisputeID, m.Amount, m.Currency)
		fmt.Fprintf(&sb, "%s\n\n", m.Reasoning)
		sb.WriteString("Expected resolution within 24-48 hours. No action is required from you at this time.\n")
	case "accept":
		fmt.Fprintf(&sb, "Your dispute %s for %.2f %s has been accepted. A refund will be issued to your account.\n\n", m.DisputeID, m.Amount, m.Currency)
		fmt.Fprintf(&sb, "Decision rationale: %s\n", m.Reasoning)
	case "reject":
		fmt.Fprintf(&sb, "After review, your dispute %s for %.2f %s has been declined.\n\n", m.DisputeID, m.Amount, m.Currency)
		fmt.Fprintf(&sb, "Decision rationale: %s\n", m.Reasoning)
	default:
		fmt.Fprintf(&sb, "Your dispute %s for %.2f %s has been escalated for further review.\n\n", m.DisputeID, m.Amount, m.Currency)
		fmt.Fprintf(&sb, "%s\n", m.Reasoning)
	}

	sb.WriteString("\nThank you,\nDispute Resolution Team\n")
	return sb.String()
}
