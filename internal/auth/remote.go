package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/tracing"
)

const (
	// SessionPath is the session lookup endpoint of the auth service.
	SessionPath = "/api/V2/me"
	// BreakerName labels the session service circuit breaker.
	BreakerName = "auth-session"
)

// RemoteConfig configures the session service client.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
	// IdentityProvider selects which linked identities are reported.
	IdentityProvider string
	RetryMax         int
	// RequestsPerSecond caps outbound lookups; zero means unlimited.
	RequestsPerSecond float64
}

// DefaultRemoteConfig returns production defaults.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Timeout:          10 * time.Second,
		IdentityProvider: "Globus",
		RetryMax:         2,
	}
}

// Remote resolves credentials against the session service.
type Remote struct {
	client   *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	settings resilience.Settings
	provider string
	logger   *zap.Logger
}

// RemoteOption customises a Remote.
type RemoteOption func(*Remote)

// WithRemoteLogger sets the logger.
func WithRemoteLogger(logger *zap.Logger) RemoteOption {
	return func(r *Remote) { r.logger = logger }
}

// WithBreakerSettings replaces the circuit breaker settings.
func WithBreakerSettings(settings resilience.Settings) RemoteOption {
	return func(r *Remote) {
		observer := r.settings.OnStateChange
		r.settings = settings
		if settings.OnStateChange == nil {
			r.settings.OnStateChange = observer
		}
	}
}

// WithBreakerObserver is called on every breaker transition.
func WithBreakerObserver(fn func(name string, from, to resilience.State)) RemoteOption {
	return func(r *Remote) { r.settings.OnStateChange = fn }
}

// NewRemote creates a session service client with retries on transport
// errors and 5xx responses, a circuit breaker and an optional rate limit.
func NewRemote(cfg RemoteConfig, opts ...RemoteOption) *Remote {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "stagingfs/1.0").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	provider := cfg.IdentityProvider
	if provider == "" {
		provider = "Globus"
	}

	r := &Remote{
		client:   client,
		limiter:  limiter,
		provider: provider,
		logger:   zap.NewNop(),
		settings: resilience.Settings{
			MaxRequests: 2,
			Interval:    time.Minute,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker = resilience.New(BreakerName, r.settings)
	return r
}

// Breaker exposes the circuit breaker, for health reporting.
func (r *Remote) Breaker() *resilience.Breaker {
	return r.breaker
}

type sessionIdent struct {
	Provider     string `json:"provider"`
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProvUsername string `json:"provusername"`
}

type sessionResponse struct {
	User   string         `json:"user"`
	ID     string         `json:"id"`
	Idents []sessionIdent `json:"idents"`
}

// lookup is the breaker-guarded call. A rejected credential is a successful
// call from the breaker's point of view.
type lookup struct {
	session  *sessionResponse
	rejected bool
}

// Authenticate forwards the credential verbatim as the Authorization header.
func (r *Remote) Authenticate(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrMissingCredentials
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	res, err := resilience.Call(r.breaker, func() (lookup, error) {
		return r.fetch(ctx, credential)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			r.logger.Warn("auth session breaker rejecting calls", zap.String("state", r.breaker.State().String()))
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if res.rejected {
		return Identity{}, ErrInvalidCredentials
	}
	return r.identity(res.session)
}

func (r *Remote) fetch(ctx context.Context, credential string) (lookup, error) {
	headers := make(map[string]string, 2)
	tracing.InjectTraceContext(ctx, headers)

	var session sessionResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Authorization", credential).
		SetHeaders(headers).
		SetResult(&session).
		Get(SessionPath)
	if err != nil {
		return lookup{}, fmt.Errorf("session request failed: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return lookup{}, fmt.Errorf("session service throttled the request")
	case code >= 400 && code < 500:
		// The service understood the request and refused the token.
		r.logger.Debug("session service refused credential", zap.Int("status", code))
		return lookup{rejected: true}, nil
	case code >= 500:
		return lookup{}, fmt.Errorf("session service returned %d", code)
	}

	return lookup{session: &session}, nil
}

func (r *Remote) identity(s *sessionResponse) (Identity, error) {
	username := s.User
	if username == "" {
		username = s.ID
	}
	if username == "" {
		return Identity{}, ErrInvalidCredentials
	}

	var linked []string
	for _, ident := range s.Idents {
		if ident.Provider != r.provider {
			continue
		}
		switch {
		case ident.Username != "":
			linked = append(linked, ident.Username)
		case ident.ProvUsername != "":
			linked = append(linked, ident.ProvUsername)
		case ident.ID != "":
			linked = append(linked, ident.ID)
		}
	}
	return Identity{Username: username, LinkedIDs: linked}, nil
}
