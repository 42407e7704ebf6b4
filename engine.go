package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradepost/identity/internal/audit"
	"github.com/tradepost/identity/internal/rate"
	"github.com/tradepost/identity/password"
	"github.com/tradepost/identity/store"
	"github.com/tradepost/identity/token"
)

const (
	opRegister = "register"
	opLogin    = "login"
	opOAuth    = "oauth"
	opRefresh  = "refresh"
)

// Engine composes the credential store, rate limiter, token service,
// and password hasher into the register/login/refresh operations. It is
// stateless between calls: every correctness guarantee rests on atomic
// primitives at the store boundary, never on in-process locks, so any
// number of Engine instances can serve the same backends.
type Engine struct {
	config  Config
	store   store.Store
	hasher  *password.Hasher
	tokens  *token.Manager
	limiter *rate.Limiter
	ledger  *refreshLedger
	audit   *audit.Dispatcher
	metrics *Metrics

	// decoyHash burns a verification on unknown-email logins so the
	// unknown-email and wrong-password paths cost the same.
	decoyHash string
}

// Close drains and stops the audit dispatcher. Safe on a nil engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// checkRate enforces one operation's fixed-window budget. Account
// creation is keyed by the caller alone, so one caller burning through
// many emails still hits the cap; credential checks are keyed by
// caller and email together, so an attacker cannot lock a victim out
// from a different address.
func (e *Engine) checkRate(ctx context.Context, op string, w RateLimitWindow, identifier string) error {
	if e.limiter == nil || !e.config.RateLimit.Enabled {
		return nil
	}

	res, err := e.limiter.Increment(ctx, op+":"+identifier, w.Window, w.Max)
	if err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrServiceUnavailable, err)
	}
	if !res.Allowed {
		return &RateLimitError{
			RetryAfter: time.Until(res.ResetAt),
			ResetAt:    res.ResetAt,
		}
	}
	return nil
}

// callerIdentifier is the rate-limit key for caller-scoped budgets:
// the client IP when the host supplied one, otherwise the fallback.
func (e *Engine) callerIdentifier(ctx context.Context, fallback string) string {
	if ip := clientIPFromContext(ctx); ip != "" {
		return ip
	}
	return fallback
}

// withStoreTimeout bounds one credential store call. Deadline expiry is
// reported as ErrServiceUnavailable by mapStoreErr.
func (e *Engine) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Store.Timeout)
}

// mapStoreErr translates store failures into the engine taxonomy.
// ErrEmailTaken and ErrNotFound are expected outcomes the callers
// branch on first; anything surviving to this point is a backend fault.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: store timeout", ErrServiceUnavailable)
	}
	return fmt.Errorf("%w: store: %w", ErrServiceUnavailable, err)
}

func accountStatusError(status store.AccountStatus) error {
	switch status {
	case store.StatusDisabled:
		return ErrAccountDisabled
	case store.StatusLocked:
		return ErrAccountLocked
	case store.StatusDeleted:
		return ErrAccountDeleted
	default:
		return nil
	}
}
