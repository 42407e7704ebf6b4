package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tradepost/identity/internal/audit"
	"github.com/tradepost/identity/store"
)

// Register creates an account and issues its first token pair.
//
// A duplicate-email conflict is not trusted at face value: the engine
// re-reads the store, and when a matching record exists the call
// succeeds idempotently, since the duplicate almost always originates
// from the caller's own retried request. Only when the re-read finds
// nothing does the caller see ErrBackendInconsistency, which is
// retryable.
func (e *Engine) Register(ctx context.Context, email, plaintext, role string) (*AuthResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	email = store.NormalizeEmail(email)
	if err := e.validateRegistration(email, plaintext); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, audit.EventRegister, false, userRef{email: email}, err, nil)
		return nil, err
	}
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	if !roleAllowed(e.config.Account.AllowedRoles, role) {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, audit.EventRegister, false, userRef{email: email}, ErrRoleInvalid, func() map[string]string {
			return map[string]string{"role": role}
		})
		return nil, ErrRoleInvalid
	}

	if err := e.checkRate(ctx, opRegister, e.config.RateLimit.Register, e.callerIdentifier(ctx, email)); err != nil {
		e.metricInc(MetricRegisterRateLimited)
		e.emitAudit(ctx, audit.EventRegister, false, userRef{email: email}, err, nil)
		return nil, err
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, audit.EventRegister, false, userRef{email: email}, err, nil)
		return nil, fmt.Errorf("%w: hashing failed", ErrServiceUnavailable)
	}

	sctx, cancel := e.withStoreTimeout(ctx)
	user, err := e.store.Create(sctx, store.CreateInput{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, store.ErrEmailTaken):
		user, err = e.recoverRegisterConflict(ctx, email)
		if err != nil {
			e.emitAudit(ctx, audit.EventRegister, false, userRef{email: email}, err, nil)
			return nil, err
		}
	default:
		e.metricInc(MetricRegisterFailure)
		mapped := mapStoreErr(err)
		e.emitAudit(ctx, audit.EventRegister, false, userRef{email: email}, mapped, nil)
		return nil, mapped
	}

	if statusErr := accountStatusError(user.Status); statusErr != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, audit.EventRegister, false, userRef{id: user.ID, email: email}, statusErr, nil)
		return nil, statusErr
	}

	pair, err := e.tokens.Issue(user.Email, user.Role)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, audit.EventRegister, false, userRef{id: user.ID, email: email}, err, nil)
		return nil, fmt.Errorf("%w: token issue failed", ErrServiceUnavailable)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, audit.EventRegister, true, userRef{id: user.ID, email: email}, nil, nil)

	return &AuthResult{
		User:         sanitizeUser(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// recoverRegisterConflict handles the conflict branch of Register and
// OAuthLogin. The create reported a duplicate, so a matching record
// should be readable; when it is, the conflict resolves as an
// idempotent success.
func (e *Engine) recoverRegisterConflict(ctx context.Context, email string) (store.User, error) {
	sctx, cancel := e.withStoreTimeout(ctx)
	user, err := e.store.FindByEmail(sctx, email)
	cancel()

	switch {
	case err == nil:
		e.metricInc(MetricRegisterRecovered)
		return user, nil
	case errors.Is(err, store.ErrNotFound):
		// Create and find disagree about this email. The record store's
		// views are out of sync; the caller can retry once they converge.
		log.Print("identity: create reported duplicate but re-check found no record")
		e.metricInc(MetricBackendInconsistency)
		e.metricInc(MetricRegisterFailure)
		return store.User{}, ErrBackendInconsistency
	default:
		e.metricInc(MetricRegisterFailure)
		return store.User{}, mapStoreErr(err)
	}
}

func (e *Engine) validateRegistration(email, plaintext string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if len(plaintext) < e.config.Account.MinPasswordLength {
		return fmt.Errorf("%w: password too short", ErrValidation)
	}
	return nil
}
