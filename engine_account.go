package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradepost/identity/internal/audit"
	"github.com/tradepost/identity/store"
)

// SetAccountStatus transitions an account's lifecycle state. A
// non-active status takes effect on the next login or refresh; already
// issued access tokens run out their short TTL.
func (e *Engine) SetAccountStatus(ctx context.Context, email string, status store.AccountStatus) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if status > store.StatusDeleted {
		return fmt.Errorf("%w: unknown account status", ErrValidation)
	}

	email = store.NormalizeEmail(email)

	sctx, cancel := e.withStoreTimeout(ctx)
	err := e.store.UpdateStatus(sctx, email, status)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.emitAudit(ctx, audit.EventStatusChange, false, userRef{email: email}, err, nil)
			return err
		}
		mapped := mapStoreErr(err)
		e.emitAudit(ctx, audit.EventStatusChange, false, userRef{email: email}, mapped, nil)
		return mapped
	}

	e.metricInc(MetricStatusChanged)
	e.emitAudit(ctx, audit.EventStatusChange, true, userRef{email: email}, nil, func() map[string]string {
		return map[string]string{"status": statusLabel(status)}
	})
	return nil
}

func statusLabel(status store.AccountStatus) string {
	switch status {
	case store.StatusActive:
		return "active"
	case store.StatusDisabled:
		return "disabled"
	case store.StatusLocked:
		return "locked"
	case store.StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
