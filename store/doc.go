// Package store holds the durable credential records behind the identity
// engine: the user contract, a Postgres implementation, and an in-memory
// implementation for tests and single-process setups.
//
// All lookups key on the normalized email (lowercased, trimmed). Expected
// outcomes are sentinel errors — ErrEmailTaken, ErrNotFound — so callers
// branch on errors.Is rather than inspecting backend error text.
package store
