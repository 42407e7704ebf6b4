package identity

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/tradepost/identity/internal/audit"
	"github.com/tradepost/identity/internal/rate"
	"github.com/tradepost/identity/password"
	"github.com/tradepost/identity/store"
	"github.com/tradepost/identity/token"

	"github.com/google/uuid"
)

// Builder assembles an Engine. Configure it with the With* methods and
// call Build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	users  store.Store
	sink   AuditSink

	built bool
}

// New returns a Builder loaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the rate limiter and the refresh
// token ledger.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the credential store.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.users = s
	return b
}

// WithAuditSink sets the sink receiving audit events. Enabling audit
// without a sink falls back to a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, constructs every component, and
// returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("identity: builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.users == nil {
		return nil, errors.New("identity: credential store required")
	}
	if b.redis == nil {
		return nil, errors.New("identity: redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(cfg.Token)
	if err != nil {
		return nil, err
	}

	// Hashing a throwaway value up front gives login a real hash to
	// verify against when the email is unknown, keeping both failure
	// paths on the same cost profile.
	decoy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		store:     b.users,
		hasher:    hasher,
		tokens:    tokens,
		limiter:   rate.New(b.redis, cfg.RateLimit.KeyPrefix),
		ledger:    newRefreshLedger(b.redis, cfg.RateLimit.KeyPrefix),
		metrics:   NewMetrics(cfg.Metrics),
		decoyHash: decoy,
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.sink)

	b.built = true

	return engine, nil
}
