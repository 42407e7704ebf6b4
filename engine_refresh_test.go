package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tradepost/identity/store"
	"github.com/tradepost/identity/token"
)

// clockedConfig wires a controllable clock into token verification so
// expiry tests advance time instead of sleeping.
func clockedConfig() (Config, *time.Time) {
	cfg := testConfig()
	now := time.Now()
	cfg.Token.Now = func() time.Time { return now }
	return cfg, &now
}

func TestRefreshRotatesBothTokens(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	pair, err := engine.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.RefreshToken == reg.RefreshToken {
		t.Fatal("refresh token must rotate")
	}
	if pair.AccessToken == reg.AccessToken {
		t.Fatal("access token must rotate")
	}

	claims, err := engine.tokens.Verify(pair.AccessToken, token.TypeAccess)
	if err != nil {
		t.Fatalf("rotated access token does not verify: %v", err)
	}
	if claims.Subject != "a@test.com" {
		t.Fatalf("subject lost in rotation: %q", claims.Subject)
	}
}

func TestRefreshReuseRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, reg.RefreshToken); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}

	// Deterministic strict rotation: the consumed token fails every
	// subsequent time it is presented.
	for i := 0; i < 2; i++ {
		if _, err := engine.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("reuse %d: expected ErrSessionExpired, got %v", i, err)
		}
	}
	if engine.metrics.Value(MetricRefreshReuseDetected) != 2 {
		t.Fatal("expected the reuse counter to advance twice")
	}
}

func TestRefreshChain(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	current := reg.RefreshToken
	for i := 0; i < 5; i++ {
		pair, err := engine.Refresh(ctx, current)
		if err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
		current = pair.RefreshToken
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	cfg, now := clockedConfig()
	engine, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	*now = now.Add(cfg.Token.RefreshTTL + time.Minute)

	_, err = engine.Refresh(ctx, reg.RefreshToken)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err = engine.Refresh(ctx, reg.AccessToken)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for access token, got %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	_, err := engine.Refresh(context.Background(), "not-a-token")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRefreshRechecksAccountStatus(t *testing.T) {
	engine, users, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := users.UpdateStatus(ctx, "a@test.com", store.StatusLocked); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestRefreshAccountRemoved(t *testing.T) {
	engine, users, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	users.Delete("a@test.com")

	if _, err := engine.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Refresh = RateLimitWindow{Max: 2, Window: time.Minute}
	engine, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	current := reg.RefreshToken
	for i := 0; i < 2; i++ {
		pair, err := engine.Refresh(ctx, current)
		if err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
		current = pair.RefreshToken
	}

	if _, err := engine.Refresh(ctx, current); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRefreshLedgerDown(t *testing.T) {
	engine, _, mr := newTestEngine(t, testConfig())
	ctx := context.Background()

	reg, err := engine.Register(ctx, "a@test.com", "Secret1!pass", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	mr.Close()

	_, err = engine.Refresh(ctx, reg.RefreshToken)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
