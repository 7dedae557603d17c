package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote failed")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(settings Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := New("test", settings)
	b.now = clock.now
	b.expiry = clock.now().Add(b.settings.Interval)
	return b, clock
}

func call(b *Breaker, success bool) error {
	return b.Do(context.Background(), func(context.Context) error {
		if success {
			return nil
		}
		return errRemote
	})
}

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{ReadyToTrip: tripAfter(3)},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "a success resets the streak",
			settings:      Settings{ReadyToTrip: tripAfter(3)},
			requests:      []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(tt.settings)
			for _, success := range tt.requests {
				_ = call(b, success)
			}
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerOpenRejects(t *testing.T) {
	b, _ := newTestBreaker(Settings{ReadyToTrip: tripAfter(2)})
	_ = call(b, false)
	_ = call(b, false)

	ran := false
	err := b.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(2),
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = call(b, false)
	_ = call(b, false)
	require.Equal(t, StateOpen, b.State())

	clock.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, call(b, true))
	require.NoError(t, call(b, true))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1)})

	_ = call(b, false)
	clock.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	assert.ErrorIs(t, call(b, false), errRemote)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsTrials(t *testing.T) {
	b, clock := newTestBreaker(Settings{MaxRequests: 1, Timeout: time.Second, ReadyToTrip: tripAfter(1)})
	_ = call(b, false)
	clock.advance(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()

	require.Eventually(t, func() bool { return b.Counts().Requests == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, call(b, true), ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	errBadInput := errors.New("bad input")
	b, _ := newTestBreaker(Settings{
		ReadyToTrip: tripAfter(1),
		IsFailure:   func(err error) bool { return !errors.Is(err, errBadInput) },
	})

	err := b.Do(context.Background(), func(context.Context) error { return errBadInput })
	assert.ErrorIs(t, err, errBadInput)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)

	err = b.Do(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	b, clock := newTestBreaker(Settings{Interval: time.Minute, ReadyToTrip: tripAfter(3)})

	_ = call(b, false)
	_ = call(b, false)
	clock.advance(2 * time.Minute)
	_ = call(b, false)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{ReadyToTrip: tripAfter(1)})

	assert.Panics(t, func() {
		_ = b.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}
