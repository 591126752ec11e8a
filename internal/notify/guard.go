package notify

import (
	"context"
	"errors"

	"dispute-agent/internal/breaker"
)

// Guarded wraps a transport with a circuit breaker. An open breaker
// short-circuits to a failed result, which the chain treats like any other
// transport failure and moves on to the next provider.
type Guarded struct {
	Transport Transport
	Breaker   *breaker.Breaker
}

func Guard(t Transport, b *breaker.Breaker) *Guarded {
	return &Guarded{Transport: t, Breaker: b}
}

func (g *Guarded) Name() string { return g.Transport.Name() }

func (g *Guarded) Send(ctx context.Context, msg Message) (*SendResult, error) {
	var res *SendResult
	var sendErr error

	err := g.Breaker.Call(func() error {
		res, sendErr = g.Transport.Send(ctx, msg)
		if sendErr != nil {
			return sendErr
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	})
	if breaker.IsOpen(err) {
		return &SendResult{
			Success:  false,
			Provider: g.Name(),
			Error:    err.Error(),
		}, nil
	}
	return res, sendErr
}
