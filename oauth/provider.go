package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// Claims holds the normalized identity claims returned by a provider.
// All fields come from a verified ID token; Sub is the provider's
// stable subject identifier, never the email.
type Claims struct {
	Sub           string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// Provider is an OAuth2 / OIDC identity provider. Implementations
// handle the provider-specific consent URL, code exchange, and ID
// token verification. PKCE is mandatory: callers pass the
// code_challenge to AuthCodeURL and the matching code_verifier to
// Exchange.
type Provider interface {
	// Name returns the provider identifier stored alongside the
	// subject on linked accounts.
	Name() string

	// AuthCodeURL returns the consent page URL with state and the
	// PKCE code_challenge embedded.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades an authorization code for verified identity
	// claims.
	Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error)
}

// PKCE holds a freshly generated verifier/challenge pair for one
// authorization round-trip.
type PKCE struct {
	Verifier  string
	Challenge string
}

// NewPKCE generates a code_verifier and its S256 code_challenge.
func NewPKCE() (PKCE, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return PKCE{}, err
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw[:])
	sum := sha256.Sum256([]byte(verifier))
	return PKCE{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// NewState generates an unguessable state parameter.
func NewState() (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
