package dispute

import (
	"context"
	"math"
	"time"

	"dispute-agent/internal/notify"

	"github.com/rs/zerolog/log"
)

// DispatchResult records the outcome of the customer notification.
type DispatchResult struct {
	Success   bool
	Recipient string
	Subject   string
	Provider  string
	MessageID string
	SentAt    time.Time
	Attempt   int
	Error     string
}

// Dispatcher executes decision actions. Delivery failures are retried with
// exponential backoff; a terminal failure is reported in the result rather
// than as an error so the workflow can fall back to human review.
type Dispatcher struct {
	Notifier   notify.Transport
	MaxRetries int

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(notifier notify.Transport, maxRetries int) *Dispatcher {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Dispatcher{
		Notifier:   notifier,
		MaxRetries: maxRetries,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dispatch sends the decision notification for the dispute. The delay before
// retry n is 2^n seconds.
func (d *Dispatcher) Dispatch(ctx context.Context, state *State, decision *Decision) *DispatchResult {
	recipient := state.Payload.CustomerEmail
	if recipient == "" {
		recipient = "customer@example.com"
	}

	msg := notify.Message{
		To:           recipient,
		DisputeID:    state.DisputeID,
		CustomerName: state.Payload.CustomerName,
		Decision:     decision.Decision,
		Reasoning:    decision.Reasoning,
		Amount:       state.Payload.Amount,
		Currency:     state.Payload.Currency,
	}

	var lastErr string
	attempt := 0
	for attempt < d.MaxRetries {
		attempt++
		res, err := d.Notifier.Send(ctx, msg)
		if err == nil && res.Success {
			return &DispatchResult{
				Success:   true,
				Recipient: recipient,
				Subject:   msg.Subject(),
				Provider:  res.Provider,
				MessageID: res.MessageID,
				SentAt:    time.Now().UTC(),
				Attempt:   attempt,
			}
		}

		if err != nil {
			lastErr = err.Error()
		} else {
			lastErr = res.Error
		}
		log.Warn().
			Str("dispute_id", state.DisputeID).
			Int("attempt", attempt).
			Str("error", lastErr).
			Msg("decision notification attempt failed")

		if attempt < d.MaxRetries {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			if err := d.sleep(ctx, delay); err != nil {
				lastErr = err.Error()
				break
			}
		}
	}

	return &DispatchResult{
		Success:   false,
		Recipient: recipient,
		Subject:   msg.Subject(),
		Attempt:   attempt,
		Error:     lastErr,
	}
}
