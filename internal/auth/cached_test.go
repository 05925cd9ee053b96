package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stagingfs/internal/shared/cache"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, credential string) (Identity, error) {
	args := m.Called(ctx, credential)
	return args.Get(0).(Identity), args.Error(1)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCachedHit(t *testing.T) {
	next := &mockAuthenticator{}
	alice := Identity{Username: "alice"}
	next.On("Authenticate", mock.Anything, "tok").Return(alice, nil).Once()

	metrics := monitoring.NewMetrics()
	c := NewCached(next, 16, time.Minute, metrics)

	for i := 0; i < 3; i++ {
		id, err := c.Authenticate(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, alice, id)
	}

	next.AssertExpectations(t)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AuthCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthCache.WithLabelValues("miss")))
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	next := &mockAuthenticator{}
	next.On("Authenticate", mock.Anything, "bad").Return(Identity{}, ErrInvalidCredentials).Twice()

	c := NewCached(next, 16, time.Minute, nil)
	for i := 0; i < 2; i++ {
		_, err := c.Authenticate(context.Background(), "bad")
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
	}
	next.AssertExpectations(t)
}

func TestCachedExpires(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	next := &mockAuthenticator{}
	next.On("Authenticate", mock.Anything, "tok").Return(Identity{Username: "alice"}, nil).Twice()

	c := NewCached(next, 16, time.Minute, nil, cache.WithClock(clk.Now))
	_, err := c.Authenticate(context.Background(), "tok")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = c.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	next.AssertExpectations(t)
}

func TestCachedDisabled(t *testing.T) {
	next := &mockAuthenticator{}
	next.On("Authenticate", mock.Anything, "tok").Return(Identity{Username: "alice"}, nil).Twice()

	c := NewCached(next, 0, time.Minute, nil)
	_, _ = c.Authenticate(context.Background(), "tok")
	_, _ = c.Authenticate(context.Background(), "tok")
	next.AssertExpectations(t)
}

func TestCredentialKeyIsStable(t *testing.T) {
	assert.Equal(t, credentialKey("a"), credentialKey("a"))
	assert.NotEqual(t, credentialKey("a"), credentialKey("b"))
	assert.Len(t, credentialKey("a"), 64)
	assert.NotContains(t, credentialKey("secret-token"), "secret")
}
