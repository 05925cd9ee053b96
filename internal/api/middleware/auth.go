package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/auth"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
)

// Client facing authentication messages.
const (
	MsgAuthRequired       = "Auth is required!"
	MsgInvalidCredentials = "Invalid credentials"
	MsgAuthUnavailable    = "Unable to validate authentication credentials"
)

const identityKey = "identity"

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	// Mode labels metrics.
	Mode string
	// DevToken is injected into requests that carry no Authorization header.
	DevToken string
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// Auth resolves the Authorization header into an identity, or aborts with
// 401 for a missing or rejected credential and 500 when it cannot be checked.
func Auth(authn auth.Authenticator, opts AuthOptions) gin.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		credential := c.GetHeader("Authorization")
		if credential == "" && opts.DevToken != "" {
			credential = opts.DevToken
			c.Request.Header.Set("Authorization", credential)
		}
		if credential == "" {
			opts.Metrics.RecordAuth(opts.Mode, "missing", 0)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MsgAuthRequired})
			return
		}

		start := time.Now()
		id, err := authn.Authenticate(c.Request.Context(), credential)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			opts.Metrics.RecordAuth(opts.Mode, "ok", elapsed)
		case errors.Is(err, auth.ErrMissingCredentials):
			opts.Metrics.RecordAuth(opts.Mode, "missing", elapsed)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MsgAuthRequired})
			return
		case errors.Is(err, auth.ErrInvalidCredentials):
			opts.Metrics.RecordAuth(opts.Mode, "rejected", elapsed)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MsgInvalidCredentials})
			return
		default:
			opts.Metrics.RecordAuth(opts.Mode, "error", elapsed)
			logger.Error("credential validation failed", zap.String("mode", opts.Mode), zap.Error(err))
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": MsgAuthUnavailable})
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// Identity returns the caller resolved by Auth.
func Identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok && id.Username != ""
}
