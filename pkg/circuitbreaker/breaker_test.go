package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial tcp: connection refused")

func newTestBreaker(clock *time.Time, transitions *[]string) *CircuitBreaker {
	cb := NewCircuitBreaker("backend", Config{
		Timeout:          10 * time.Second,
		FailureThreshold: 2,
		OnStateChange: func(_ string, from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := time.Unix(1000, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)

	assert.ErrorIs(t, cb.Execute(func() error { return errDial }), errDial)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return errDial }), errDial)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	clock := time.Unix(1000, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)

	_ = cb.Execute(func() error { return errDial })
	_ = cb.Execute(func() error { return errDial })
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Unix(1000, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)

	_ = cb.Execute(func() error { return errDial })
	_ = cb.Execute(func() error { return errDial })
	clock = clock.Add(11 * time.Second)

	assert.ErrorIs(t, cb.Execute(func() error { return errDial }), errDial)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	clock := time.Unix(1000, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)

	_ = cb.Execute(func() error { return errDial })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errDial })

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
}
