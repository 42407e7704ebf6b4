package identity

import (
	"errors"
	"time"

	"github.com/tradepost/identity/password"
	"github.com/tradepost/identity/token"
)

// Config is the full engine configuration. Populate it once, hand it to
// the Builder, and treat it as immutable afterwards; the Builder clones
// it so later caller-side mutation has no effect.
type Config struct {
	Token     token.Config
	Password  password.Config
	RateLimit RateLimitConfig
	Account   AccountConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// RateLimitWindow is one fixed-window budget: at most Max calls per
// Window per identifier.
type RateLimitWindow struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig holds the per-operation abuse budgets. Identifiers
// are ip|email composites, so one hostile caller cannot exhaust the
// budget of an address they do not control.
type RateLimitConfig struct {
	Enabled   bool
	KeyPrefix string
	Register  RateLimitWindow
	Login     RateLimitWindow
	OAuth     RateLimitWindow
	Refresh   RateLimitWindow
}

// AccountConfig controls registration policy.
type AccountConfig struct {
	DefaultRole       string
	AllowedRoles      []string
	MinPasswordLength int
}

// StoreConfig bounds credential store calls. A call that outlives
// Timeout surfaces as ErrServiceUnavailable rather than hanging the
// request.
type StoreConfig struct {
	Timeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration. It is not usable
// as-is: Token.PrivateKey must still be set before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: token.Config{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			RefreshBuffer: 120 * time.Second,
			SigningMethod: token.MethodHS256,
		},
		Password: password.Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			KeyPrefix: "identity",
			Register:  RateLimitWindow{Max: 5, Window: time.Minute},
			Login:     RateLimitWindow{Max: 5, Window: time.Minute},
			OAuth:     RateLimitWindow{Max: 10, Window: time.Minute},
			Refresh:   RateLimitWindow{Max: 30, Window: time.Minute},
		},
		Account: AccountConfig{
			DefaultRole:       "customer",
			AllowedRoles:      []string{"customer", "seller"},
			MinPasswordLength: 8,
		},
		Store: StoreConfig{
			Timeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the parts of the configuration the subpackage
// constructors do not cover themselves.
func (c Config) Validate() error {
	if c.Store.Timeout <= 0 {
		return errors.New("identity: store timeout must be positive")
	}
	if c.Account.DefaultRole == "" {
		return errors.New("identity: default role required")
	}
	if len(c.Account.AllowedRoles) == 0 {
		return errors.New("identity: allowed roles required")
	}
	if !roleAllowed(c.Account.AllowedRoles, c.Account.DefaultRole) {
		return errors.New("identity: default role must be in allowed roles")
	}
	if c.Account.MinPasswordLength <= 0 {
		return errors.New("identity: minimum password length must be positive")
	}
	if c.RateLimit.Enabled {
		for _, w := range []RateLimitWindow{
			c.RateLimit.Register,
			c.RateLimit.Login,
			c.RateLimit.OAuth,
			c.RateLimit.Refresh,
		} {
			if w.Max <= 0 || w.Window <= 0 {
				return errors.New("identity: rate limit windows must have positive max and duration")
			}
		}
	}
	return nil
}

func roleAllowed(allowed []string, role string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Account.AllowedRoles = append([]string(nil), cfg.Account.AllowedRoles...)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
