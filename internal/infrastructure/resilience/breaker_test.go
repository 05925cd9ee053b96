package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func trip(counts Counts) bool { return counts.ConsecutiveFailures >= 2 }

func fail(b *Breaker) error {
	_, err := Call(b, func() (string, error) { return "", errBoom })
	return err
}

func succeed(b *Breaker) error {
	_, err := Call(b, func() (string, error) { return "ok", nil })
	return err
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		requests []bool // true = success
		expected State
	}{
		{name: "stays closed on successes", requests: []bool{true, true, true}, expected: StateClosed},
		{name: "opens after consecutive failures", requests: []bool{false, false}, expected: StateOpen},
		{name: "success resets the failure streak", requests: []bool{false, true, false}, expected: StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			b := New("test", Settings{ReadyToTrip: trip, Now: clock.Now})

			for _, ok := range tt.requests {
				if ok {
					_ = succeed(b)
				} else {
					_ = fail(b)
				}
			}
			assert.Equal(t, tt.expected, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b := New("test", Settings{Now: newFakeClock().Now})

	require.NoError(t, succeed(b))
	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, fail(b), errBoom)
	counts = b.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clock := newFakeClock()
	b := New("test", Settings{Interval: time.Minute, ReadyToTrip: trip, Now: clock.Now})

	_ = fail(b)
	clock.Advance(2 * time.Minute)
	_ = fail(b)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerOpenRejects(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: trip, Now: newFakeClock().Now})
	_ = fail(b)
	_ = fail(b)

	called := false
	_, err := Call(b, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpen(t *testing.T) {
	clock := newFakeClock()
	b := New("test", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: trip,
		Now:         clock.Now,
	})
	_ = fail(b)
	_ = fail(b)
	require.Equal(t, StateOpen, b.State())

	clock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, succeed(b))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: trip, Now: clock.Now})
	_ = fail(b)
	_ = fail(b)
	clock.Advance(2 * time.Second)

	assert.ErrorIs(t, fail(b), errBoom)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clock := newFakeClock()
	b := New("test", Settings{MaxRequests: 1, Timeout: time.Second, ReadyToTrip: trip, Now: clock.Now})
	_ = fail(b)
	_ = fail(b)
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Call(b, func() (string, error) {
			close(started)
			<-release
			return "ok", nil
		})
		done <- err
	}()

	<-started
	assert.ErrorIs(t, succeed(b), ErrTooManyRequests)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: trip, Now: newFakeClock().Now})

	for i := 0; i < 5; i++ {
		_, err := Call(b, func() (string, error) { return "", context.Canceled })
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCustomClassifier(t *testing.T) {
	errRejected := errors.New("rejected")
	b := New("test", Settings{
		ReadyToTrip:  trip,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errRejected) },
		Now:          newFakeClock().Now,
	})

	for i := 0; i < 3; i++ {
		_, _ = Call(b, func() (string, error) { return "", errRejected })
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string
	clock := newFakeClock()
	b := New("auth", Settings{
		Timeout:     time.Second,
		ReadyToTrip: trip,
		Now:         clock.Now,
		OnStateChange: func(name string, from, to State) {
			assert.Equal(t, "auth", name)
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = fail(b)
	_ = fail(b)
	clock.Advance(2 * time.Second)
	_ = b.State()
	_ = succeed(b)

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerRecoversFromPanic(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 }, Now: newFakeClock().Now})

	assert.Panics(t, func() {
		_, _ = Call(b, func() (int, error) { panic("kaboom") })
	})
	assert.Equal(t, StateOpen, b.State())
}
