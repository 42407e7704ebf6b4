// Package oauth defines the identity provider abstraction used for
// federated login, plus a Google implementation built on OIDC
// discovery. State and PKCE helpers are included for callers that
// drive the browser round-trip themselves.
package oauth
