package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradepost/identity/internal/audit"
	"github.com/tradepost/identity/store"
)

// Refresh rotates a token pair. Both tokens are replaced, and the
// consumed refresh token is retired in the one-time-use ledger, so
// presenting it again fails deterministically. Every token-level
// failure surfaces as ErrSessionExpired: the caller's only recovery is
// a full login.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	pair, oldClaims, err := e.tokens.Refresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.EventRefresh, false, userRef{}, ErrSessionExpired, func() map[string]string {
			return map[string]string{"reason": "token_rejected"}
		})
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	ref := userRef{email: oldClaims.Subject}

	if err := e.checkRate(ctx, opRefresh, e.config.RateLimit.Refresh, clientIPFromContext(ctx)+"|"+oldClaims.Subject); err != nil {
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, audit.EventRefresh, false, ref, err, nil)
		return nil, err
	}

	ok, err := e.consumeRefreshToken(ctx, oldClaims.ID, oldClaims.ExpiresAt.Time)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.EventRefresh, false, ref, err, nil)
		return nil, err
	}
	if !ok {
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.EventRefresh, false, ref, ErrSessionExpired, func() map[string]string {
			return map[string]string{"reason": "refresh_reuse"}
		})
		return nil, fmt.Errorf("%w: refresh token already used", ErrSessionExpired)
	}

	// The token outlives any account state baked into it, so the
	// account is re-read before extending the session.
	sctx, cancel := e.withStoreTimeout(ctx)
	user, err := e.store.FindByEmail(sctx, oldClaims.Subject)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, audit.EventRefresh, false, ref, ErrSessionExpired, func() map[string]string {
				return map[string]string{"reason": "account_missing"}
			})
			return nil, fmt.Errorf("%w: account no longer exists", ErrSessionExpired)
		}
		e.metricInc(MetricRefreshFailure)
		mapped := mapStoreErr(err)
		e.emitAudit(ctx, audit.EventRefresh, false, ref, mapped, nil)
		return nil, mapped
	}

	ref.id = user.ID

	if statusErr := accountStatusError(user.Status); statusErr != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.EventRefresh, false, ref, statusErr, nil)
		return nil, statusErr
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, audit.EventRefresh, true, ref, nil, nil)

	return &TokenPair{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (e *Engine) consumeRefreshToken(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if e.ledger == nil {
		return true, nil
	}

	ok, err := e.ledger.Consume(ctx, jti, time.Until(expiresAt))
	if err != nil {
		return false, fmt.Errorf("%w: refresh ledger: %w", ErrServiceUnavailable, err)
	}
	return ok, nil
}
