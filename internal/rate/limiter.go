package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one Increment call. ResetAt is an absolute
// timestamp so the decision reads the same from any stateless caller.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts calls per identifier in fixed windows backed by Redis.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Limiter. The prefix namespaces limiter keys so several
// engines can share one Redis.
func New(client redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "identity"
	}
	return &Limiter{redis: client, prefix: prefix}
}

// Increment records one call for the identifier and reports whether it
// fits the window budget. The first call in a window creates the counter
// and arms its expiry in one INCR round trip plus a conditional expire;
// the counter key's TTL is both the logical window end and the physical
// eviction of the entry.
func (l *Limiter) Increment(ctx context.Context, identifier string, window time.Duration, max int) (Result, error) {
	key := l.key(identifier)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Only the call that created the counter arms the window expiry.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		// The creating caller crashed between INCR and PEXPIRE. Re-arm so
		// the key cannot outlive the window.
		if err := l.redis.PExpire(ctx, key, window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		ttl = window
	}

	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(max),
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// Reset clears the counter for an identifier. Used after a successful
// authentication so earlier failures stop counting against the caller.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(identifier string) string {
	return l.prefix + ":rl:" + identifier
}
