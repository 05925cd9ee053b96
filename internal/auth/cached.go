package auth

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stagingfs/internal/shared/cache"
)

// Cached memoizes successful authentications. Credentials are keyed by
// their hash so raw tokens never sit in memory longer than a request.
type Cached struct {
	next    Authenticator
	entries *cache.TTL[Identity]
	metrics *monitoring.Metrics
}

// NewCached wraps next. A non-positive ttl or size disables caching.
func NewCached(next Authenticator, size int, ttl time.Duration, metrics *monitoring.Metrics, opts ...cache.Option) *Cached {
	c := &Cached{next: next, metrics: metrics}
	if size > 0 && ttl > 0 {
		c.entries = cache.NewTTL[Identity](size, ttl, opts...)
	}
	return c
}

func (c *Cached) Authenticate(ctx context.Context, credential string) (Identity, error) {
	if c.entries == nil || credential == "" {
		return c.next.Authenticate(ctx, credential)
	}

	key := credentialKey(credential)
	if id, ok := c.entries.Get(key); ok {
		c.metrics.RecordAuthCache(true)
		return id, nil
	}
	c.metrics.RecordAuthCache(false)

	id, err := c.next.Authenticate(ctx, credential)
	if err != nil {
		return Identity{}, err
	}
	c.entries.Set(key, id)
	return id, nil
}

func credentialKey(credential string) string {
	sum := blake2b.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
