package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := New("test", cfg)
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestStaysGreenOnSuccess(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3})
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Call(func() error { return nil }))
	}
	assert.Equal(t, Closed, b.State())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		err := b.Call(func() error { return errUpstream })
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, Open, b.State())

	err := b.Call(func() error { return nil })
	assert.True(t, IsOpen(err))
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3})

	_ = b.Call(func() error { return errUpstream })
	_ = b.Call(func() error { return errUpstream })
	require.NoError(t, b.Call(func() error { return nil }))
	_ = b.Call(func() error { return errUpstream })
	_ = b.Call(func() error { return errUpstream })

	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenProbeAfterCooldown(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 30 * time.Second})

	_ = b.Call(func() error { return errUpstream })
	assert.Equal(t, Open, b.State())

	// Still inside cooldown: rejected.
	assert.True(t, IsOpen(b.Call(func() error { return nil })))

	*now = now.Add(31 * time.Second)

	// Probe permitted; two successes close the breaker.
	require.NoError(t, b.Call(func() error { return nil }))
	assert.Equal(t, HalfOpen, b.State())
	require.NoError(t, b.Call(func() error { return nil }))
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 2, Cooldown: 30 * time.Second})

	_ = b.Call(func() error { return errUpstream })
	_ = b.Call(func() error { return errUpstream })
	assert.Equal(t, Open, b.State())

	*now = now.Add(31 * time.Second)
	err := b.Call(func() error { return errUpstream })
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, Open, b.State())

	assert.True(t, IsOpen(b.Call(func() error { return nil })))
}

func TestStateReflectsLastTransition(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 30 * time.Second})
	_ = b.Call(func() error { return errUpstream })

	*now = now.Add(31 * time.Second)
	assert.Equal(t, Open, b.State(), "cooldown expiry is observed by Call, not State")

	require.NoError(t, b.Call(func() error { return nil }))
	assert.Equal(t, HalfOpen, b.State())
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1})
	_ = b.Call(func() error { return errUpstream })
	assert.Equal(t, Open, b.State())

	b.Reset()
	assert.Equal(t, Closed, b.State())
	require.NoError(t, b.Call(func() error { return nil }))
}
