// Package token issues, verifies, and rotates the signed access/refresh
// token pairs used by the identity engine. Tokens are JWTs carrying the
// account email as subject, the account role, and a typ claim that must
// match the operation consuming the token: an access token is never
// accepted where a refresh token is required, and vice versa.
//
// Verification failures are classified — ErrExpired, ErrMalformed,
// ErrWrongType, ErrSignatureInvalid — so callers can tell "refresh and
// retry" apart from "re-authenticate".
package token
