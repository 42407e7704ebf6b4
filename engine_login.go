package identity

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tradepost/identity/internal/audit"
	"github.com/tradepost/identity/store"
)

// Login verifies a password and issues a token pair.
//
// Unknown emails and wrong passwords produce the identical
// ErrInvalidCredentials, and the unknown-email path verifies against a
// decoy hash so neither the error nor the response time reveals whether
// an email is registered.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	email = store.NormalizeEmail(email)

	if err := e.checkRate(ctx, opLogin, e.config.RateLimit.Login, clientIPFromContext(ctx)+"|"+email); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, audit.EventLogin, false, userRef{email: email}, err, nil)
		return nil, err
	}

	if email == "" || plaintext == "" {
		return nil, e.loginRejected(ctx, userRef{email: email}, "empty_input")
	}

	sctx, cancel := e.withStoreTimeout(ctx)
	user, err := e.store.FindByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a verification so this path costs the same as a
			// wrong password against a real hash.
			_, _ = e.hasher.Verify(plaintext, e.decoyHash)
			return nil, e.loginRejected(ctx, userRef{email: email}, "unknown_email")
		}
		e.metricInc(MetricLoginFailure)
		mapped := mapStoreErr(err)
		e.emitAudit(ctx, audit.EventLogin, false, userRef{email: email}, mapped, nil)
		return nil, mapped
	}

	ref := userRef{id: user.ID, email: email}

	if user.PasswordHash == "" {
		// OAuth-only account. Indistinguishable from a wrong password.
		_, _ = e.hasher.Verify(plaintext, e.decoyHash)
		return nil, e.loginRejected(ctx, ref, "no_password_credential")
	}

	ok, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.loginRejected(ctx, ref, "password_mismatch")
	}

	if statusErr := accountStatusError(user.Status); statusErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, audit.EventLogin, false, ref, statusErr, nil)
		return nil, statusErr
	}

	e.upgradeHashIfNeeded(ctx, &user, plaintext)
	plaintext = ""

	pair, err := e.tokens.Issue(user.Email, user.Role)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, audit.EventLogin, false, ref, err, nil)
		return nil, fmt.Errorf("%w: token issue failed", ErrServiceUnavailable)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.EventLogin, true, ref, nil, nil)

	return &AuthResult{
		User:         sanitizeUser(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (e *Engine) loginRejected(ctx context.Context, ref userRef, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, audit.EventLogin, false, ref, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrInvalidCredentials
}

// upgradeHashIfNeeded transparently migrates a legacy or under-cost
// hash to the current scheme after the password verified. Failures are
// logged and swallowed; they must never block a successful login.
func (e *Engine) upgradeHashIfNeeded(ctx context.Context, user *store.User, plaintext string) {
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	newHash, err := e.hasher.Hash(plaintext)
	if err != nil {
		log.Print("identity: password hash upgrade generation failed")
		return
	}

	sctx, cancel := e.withStoreTimeout(ctx)
	err = e.store.UpdatePassword(sctx, user.Email, newHash)
	cancel()
	if err != nil {
		log.Print("identity: password hash upgrade update failed")
		return
	}

	user.PasswordHash = newHash
	e.metricInc(MetricHashUpgraded)
}
