package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradepost/identity/internal/audit"
	"github.com/tradepost/identity/oauth"
	"github.com/tradepost/identity/store"
)

// OAuthLogin finds or creates the account for a verified federated
// identity and issues a token pair. The caller performs the provider
// round-trip (oauth.Provider) and hands over the resulting claims.
//
// Creation uses the same conflict recovery as Register: when the
// account springs into existence between the lookup and the create,
// the conflict resolves as a successful login against the existing
// record.
func (e *Engine) OAuthLogin(ctx context.Context, provider string, ext oauth.Claims) (*AuthResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	if provider == "" || ext.Sub == "" || ext.Email == "" {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, audit.EventOAuthLogin, false, userRef{provider: provider}, ErrValidation, nil)
		return nil, fmt.Errorf("%w: incomplete oauth claims", ErrValidation)
	}
	if !ext.EmailVerified {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, audit.EventOAuthLogin, false, userRef{provider: provider}, ErrValidation, func() map[string]string {
			return map[string]string{"reason": "email_unverified"}
		})
		return nil, fmt.Errorf("%w: oauth email not verified", ErrValidation)
	}

	email := store.NormalizeEmail(ext.Email)
	ref := userRef{email: email, provider: provider}

	if err := e.checkRate(ctx, opOAuth, e.config.RateLimit.OAuth, e.callerIdentifier(ctx, email)); err != nil {
		e.metricInc(MetricOAuthRateLimited)
		e.emitAudit(ctx, audit.EventOAuthLogin, false, ref, err, nil)
		return nil, err
	}

	sctx, cancel := e.withStoreTimeout(ctx)
	user, err := e.store.FindByEmail(sctx, email)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		user, err = e.createOAuthUser(ctx, email, provider, ext.Sub)
		if err != nil {
			e.emitAudit(ctx, audit.EventOAuthLogin, false, ref, err, nil)
			return nil, err
		}
	default:
		e.metricInc(MetricOAuthFailure)
		mapped := mapStoreErr(err)
		e.emitAudit(ctx, audit.EventOAuthLogin, false, ref, mapped, nil)
		return nil, mapped
	}

	ref.id = user.ID

	if statusErr := accountStatusError(user.Status); statusErr != nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, audit.EventOAuthLogin, false, ref, statusErr, nil)
		return nil, statusErr
	}

	pair, err := e.tokens.Issue(user.Email, user.Role)
	if err != nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, audit.EventOAuthLogin, false, ref, err, nil)
		return nil, fmt.Errorf("%w: token issue failed", ErrServiceUnavailable)
	}

	e.metricInc(MetricOAuthSuccess)
	e.emitAudit(ctx, audit.EventOAuthLogin, true, ref, nil, nil)

	return &AuthResult{
		User:         sanitizeUser(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (e *Engine) createOAuthUser(ctx context.Context, email, provider, subject string) (store.User, error) {
	sctx, cancel := e.withStoreTimeout(ctx)
	user, err := e.store.Create(sctx, store.CreateInput{
		Email:         email,
		Role:          e.config.Account.DefaultRole,
		OAuthProvider: provider,
		OAuthSubject:  subject,
	})
	cancel()

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, store.ErrEmailTaken):
		// Lost the race to another instance; the re-check resolves it.
		return e.recoverRegisterConflict(ctx, email)
	default:
		e.metricInc(MetricOAuthFailure)
		return store.User{}, mapStoreErr(err)
	}
}
