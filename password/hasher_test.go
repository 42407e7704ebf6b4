package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h
}

func TestHashRoundtrip(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("expected argon2id PHC hash, got %q", encoded)
	}

	ok, err := h.Verify("correct horse battery", encoded)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestVerifyBcryptLegacy(t *testing.T) {
	h := newTestHasher(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt generate failed: %v", err)
	}

	ok, err := h.Verify("old-secret", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected legacy match, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("not-it", string(legacy))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected legacy mismatch")
	}
}

func TestVerifyUnknownScheme(t *testing.T) {
	h := newTestHasher(t)

	if _, err := h.Verify("x", "plaintext-or-garbage"); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	h := newTestHasher(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt generate failed: %v", err)
	}
	needs, err := h.NeedsUpgrade(string(legacy))
	if err != nil || !needs {
		t.Fatalf("bcrypt hash should need upgrade, needs=%v err=%v", needs, err)
	}

	current, err := h.Hash("fresh-secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	needs, err = h.NeedsUpgrade(current)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if needs {
		t.Fatal("current-scheme hash should not need upgrade")
	}

	stronger, err := New(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	needs, err = stronger.NeedsUpgrade(current)
	if err != nil || !needs {
		t.Fatalf("weaker-parameter hash should need upgrade, needs=%v err=%v", needs, err)
	}
}

func TestNewRejectsWeakConfig(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"low memory", func(c *Config) { c.Memory = 1024 }},
		{"zero time", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mut(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatal("expected config validation error")
			}
		})
	}
}
