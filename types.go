package identity

import "github.com/tradepost/identity/store"

// AuthResult is the success payload of Register, Login, and OAuthLogin.
// User is sanitized: PasswordHash and OAuthSubject are always empty.
type AuthResult struct {
	User         store.User
	AccessToken  string
	RefreshToken string
}

// TokenPair is the success payload of Refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func sanitizeUser(u store.User) store.User {
	u.PasswordHash = ""
	u.OAuthSubject = ""
	return u
}
