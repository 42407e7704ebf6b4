package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tradepost/identity/oauth"
	"github.com/tradepost/identity/store"
)

func googleClaims(email string) oauth.Claims {
	return oauth.Claims{
		Sub:           "sub-" + email,
		Email:         email,
		EmailVerified: true,
	}
}

func TestOAuthLoginCreatesAccount(t *testing.T) {
	engine, users, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	res, err := engine.OAuthLogin(ctx, "google", googleClaims("Fed@Test.com"))
	if err != nil {
		t.Fatalf("OAuthLogin failed: %v", err)
	}
	if res.User.Email != "fed@test.com" {
		t.Fatalf("expected normalized email, got %q", res.User.Email)
	}
	if res.User.Role != "customer" {
		t.Fatalf("expected default role, got %q", res.User.Role)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	stored, err := users.FindByEmail(ctx, "fed@test.com")
	if err != nil {
		t.Fatalf("created record missing: %v", err)
	}
	if stored.OAuthProvider != "google" || stored.OAuthSubject != "sub-Fed@Test.com" {
		t.Fatalf("provider identity not persisted: %+v", stored)
	}
	if stored.PasswordHash != "" {
		t.Fatal("oauth account must have no password hash")
	}
}

func TestOAuthLoginExistingAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	first, err := engine.OAuthLogin(ctx, "google", googleClaims("fed@test.com"))
	if err != nil {
		t.Fatalf("first OAuthLogin failed: %v", err)
	}
	second, err := engine.OAuthLogin(ctx, "google", googleClaims("fed@test.com"))
	if err != nil {
		t.Fatalf("second OAuthLogin failed: %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Fatal("expected both logins to hit one record")
	}
}

func TestOAuthLoginValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	cases := []struct {
		name     string
		provider string
		claims   oauth.Claims
	}{
		{"missing provider", "", googleClaims("a@test.com")},
		{"missing subject", "google", oauth.Claims{Email: "a@test.com", EmailVerified: true}},
		{"missing email", "google", oauth.Claims{Sub: "sub-1", EmailVerified: true}},
		{"unverified email", "google", oauth.Claims{Sub: "sub-1", Email: "a@test.com"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.OAuthLogin(ctx, tc.provider, tc.claims); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestOAuthLoginConcurrentSameEmail(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	engine, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	const callers = 8
	start := make(chan struct{})
	ids := make(chan string, callers)
	errs := make(chan error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			<-start
			res, err := engine.OAuthLogin(ctx, "google", googleClaims("fed@test.com"))
			if err != nil {
				errs <- err
				return
			}
			ids <- res.User.ID
		}()
	}
	close(start)
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("no caller may see an error, got %v", err)
	}

	distinct := map[string]bool{}
	for id := range ids {
		distinct[id] = true
	}
	if len(distinct) != 1 {
		t.Fatalf("expected one record, got %d", len(distinct))
	}
}

func TestOAuthLoginLinksToPasswordAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Federated login for an email that already has a password account
	// signs into that account; the provider verified the email.
	res, err := engine.OAuthLogin(ctx, "google", googleClaims("a@test.com"))
	if err != nil {
		t.Fatalf("OAuthLogin failed: %v", err)
	}
	if res.User.ID != reg.User.ID {
		t.Fatal("expected the existing account")
	}
}

func TestOAuthLoginDisabledAccount(t *testing.T) {
	engine, users, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := engine.OAuthLogin(ctx, "google", googleClaims("fed@test.com")); err != nil {
		t.Fatalf("OAuthLogin failed: %v", err)
	}
	if err := users.UpdateStatus(ctx, "fed@test.com", store.StatusDisabled); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	if _, err := engine.OAuthLogin(ctx, "google", googleClaims("fed@test.com")); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestOAuthLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.OAuth = RateLimitWindow{Max: 2, Window: cfg.RateLimit.OAuth.Window}
	engine, _, _ := newTestEngine(t, cfg)
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	for i := 0; i < 2; i++ {
		if _, err := engine.OAuthLogin(ctx, "google", googleClaims("fed@test.com")); err != nil {
			t.Fatalf("OAuthLogin %d failed: %v", i, err)
		}
	}

	_, err := engine.OAuthLogin(ctx, "google", googleClaims("fed@test.com"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
