package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Chain tries transports in priority order and returns the first success.
// A chain with no transports is valid and reports a failed result, which
// lets the workflow degrade when no mail provider is configured.
type Chain struct {
	Transports []Transport
}

func NewChain(transports ...Transport) *Chain {
	return &Chain{Transports: transports}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if len(c.Transports) == 0 {
		return &SendResult{
			Success:  false,
			Provider: c.Name(),
			Error:    "no notification transports configured",
		}, nil
	}

	var failures []string
	for _, t := range c.Transports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := t.Send(ctx, msg)
		if err != nil {
			log.Warn().
				Str("transport", t.Name()).
				Str("dispute_id", msg.DisputeID).
				Err(err).
				Msg("notification transport error")
			failures = append(failures, t.Name()+": "+err.Error())
			continue
		}
		if res.Success {
			return res, nil
		}
		log.Warn().
			Str("transport", t.Name()).
			Str("dispute_id", msg.DisputeID).
			Str("error", res.Error).
			Msg("notification transport rejected message")
		failures = append(failures, t.Name()+": "+res.Error)
	}

	return &SendResult{
		Success:  false,
		Provider: c.Name(),
		Error:    strings.Join(failures, "; "),
	}, nil
}
