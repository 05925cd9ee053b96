package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/tracing"
)

const sessionBody = `{
	"user": "alice",
	"display": "Alice",
	"idents": [
		{"provider": "Globus", "username": "alice@globusid.org", "id": "g-1"},
		{"provider": "Google", "username": "alice@gmail.com", "id": "go-1"},
		{"provider": "Globus", "provusername": "alice2@globusid.org", "id": "g-2"}
	]
}`

func newSessionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testRemote(url string, opts ...RemoteOption) *Remote {
	cfg := DefaultRemoteConfig()
	cfg.BaseURL = url
	cfg.RetryMax = 0
	cfg.Timeout = 2 * time.Second
	return NewRemote(cfg, opts...)
}

func TestRemoteAuthenticate(t *testing.T) {
	var gotAuth, gotPath string
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sessionBody))
	})

	id, err := testRemote(srv.URL).Authenticate(context.Background(), "TOKEN123")
	require.NoError(t, err)

	assert.Equal(t, "TOKEN123", gotAuth, "credential is forwarded verbatim")
	assert.Equal(t, SessionPath, gotPath)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, []string{"alice@globusid.org", "alice2@globusid.org"}, id.LinkedIDs)
}

func TestRemoteIdentityProvider(t *testing.T) {
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sessionBody))
	})

	cfg := DefaultRemoteConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryMax = 0
	cfg.IdentityProvider = "Google"

	id, err := NewRemote(cfg).Authenticate(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@gmail.com"}, id.LinkedIDs)
}

func TestRemoteFallsBackToID(t *testing.T) {
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "bob"}`))
	})

	id, err := testRemote(srv.URL).Authenticate(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)
	assert.Empty(t, id.LinkedIDs)
}

func TestRemoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad"}`, wantErr: ErrInvalidCredentials},
		{name: "forbidden", status: http.StatusForbidden, body: `{}`, wantErr: ErrInvalidCredentials},
		{name: "bad request", status: http.StatusBadRequest, body: `{}`, wantErr: ErrInvalidCredentials},
		{name: "no user in session", status: http.StatusOK, body: `{"idents":[]}`, wantErr: ErrInvalidCredentials},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: ErrUnavailable},
		{name: "throttled", status: http.StatusTooManyRequests, body: `{}`, wantErr: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := testRemote(srv.URL).Authenticate(context.Background(), "t")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRemoteMissingCredential(t *testing.T) {
	var calls atomic.Int32
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	_, err := testRemote(srv.URL).Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, calls.Load())
}

func TestRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testRemote(url).Authenticate(context.Background(), "t")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRemoteBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	remote := testRemote(srv.URL, WithBreakerSettings(resilience.Settings{
		Timeout:     time.Hour,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 },
	}))

	for i := 0; i < 2; i++ {
		_, err := remote.Authenticate(context.Background(), "t")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, resilience.StateOpen, remote.Breaker().State())

	_, err := remote.Authenticate(context.Background(), "t")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "open breaker short-circuits the call")
}

func TestRemoteRejectionsDoNotTripBreaker(t *testing.T) {
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	remote := testRemote(srv.URL, WithBreakerSettings(resilience.Settings{
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 1 },
	}))
	for i := 0; i < 3; i++ {
		_, err := remote.Authenticate(context.Background(), "bad")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.Equal(t, resilience.StateClosed, remote.Breaker().State())
}

func TestRemotePropagatesTrace(t *testing.T) {
	var gotTrace string
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get(tracing.TraceHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":"alice"}`))
	})

	ctx := tracing.WithRemoteParent(context.Background(), "trace-xyz", "span-1")
	_, err := testRemote(srv.URL).Authenticate(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "trace-xyz", gotTrace)
}

func TestRemoteCanceledContext(t *testing.T) {
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":"alice"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	remote := testRemote(srv.URL)
	_, err := remote.Authenticate(ctx, "t")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, resilience.StateClosed, remote.Breaker().State())
}

func TestRemoteBreakerObserver(t *testing.T) {
	srv := newSessionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	var transitions []string
	remote := testRemote(srv.URL,
		WithBreakerObserver(func(name string, from, to resilience.State) {
			transitions = append(transitions, name+":"+to.String())
		}),
		WithBreakerSettings(resilience.Settings{
			ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 1 },
		}),
	)

	_, err := remote.Authenticate(context.Background(), "t")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []string{"auth-session:open"}, transitions)
}
