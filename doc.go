// Package identity is the account and session core of a marketplace
// platform: registration, credential verification, federated login,
// signed token pairs with rotation, and abuse-prevention rate limiting.
//
// The Engine is stateless between calls. Correctness under concurrent
// invocations rests on atomic primitives at the backing stores — a
// conditional create in the credential store, an atomic
// increment-or-create in Redis — so any number of instances can serve
// the same backends.
//
// Build an Engine through the Builder:
//
//	engine, err := identity.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithStore(users).
//		Build()
//
// Registration is idempotent under retries: a duplicate-email conflict
// is re-checked against the store and resolves as a success when the
// record exists. Refresh tokens are strictly one-time use; both tokens
// rotate on every refresh.
package identity
