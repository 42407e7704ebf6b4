package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// refreshLedger enforces one-time use of refresh tokens. Consuming a
// token records its jti with a TTL equal to the token's remaining life;
// a second consume of the same jti is a replay. SET NX makes the
// record atomic, so two concurrent uses of one token admit exactly one.
type refreshLedger struct {
	redis  redis.UniversalClient
	prefix string
}

func newRefreshLedger(client redis.UniversalClient, prefix string) *refreshLedger {
	if prefix == "" {
		prefix = "identity"
	}
	return &refreshLedger{redis: client, prefix: prefix}
}

// Consume marks jti as used. It returns (false, nil) when the jti was
// already consumed.
func (l *refreshLedger) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// Token already at or past expiry; verification rejects it
		// before the ledger is consulted.
		ttl = time.Second
	}

	ok, err := l.redis.SetNX(ctx, l.key(jti), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("refresh ledger consume: %w", err)
	}
	return ok, nil
}

func (l *refreshLedger) key(jti string) string {
	return l.prefix + ":jti:" + jti
}
