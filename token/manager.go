package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type distinguishes the two halves of a token pair via the typ claim.
type Type string

const (
	// TypeAccess is the short-lived per-request credential.
	TypeAccess Type = "access"
	// TypeRefresh is the longer-lived credential used only to mint new pairs.
	TypeRefresh Type = "refresh"
)

// SigningMethod selects the JWT signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrExpired means the token's exp claim has passed.
	ErrExpired = errors.New("token: expired")
	// ErrMalformed means the token could not be parsed or its claims are invalid.
	ErrMalformed = errors.New("token: malformed")
	// ErrWrongType means the typ claim does not match the expected token type.
	ErrWrongType = errors.New("token: wrong type")
	// ErrSignatureInvalid means the signature does not verify.
	ErrSignatureInvalid = errors.New("token: signature invalid")
)

// Config holds token issuance and verification parameters.
//
// AccessTTL must be strictly less than RefreshTTL. RefreshBuffer is the
// window before access expiry inside which ExpiringSoon reports true;
// clients refreshing inside the buffer avoid the race where an in-flight
// request is rejected because its token expired mid-flight.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RefreshBuffer time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration

	// Now overrides the clock. Tests only; nil means time.Now.
	Now func() time.Time
}

// Claims is the signed claim set carried by both token types. Subject
// holds the normalized account email.
type Claims struct {
	Role      string `json:"role"`
	TokenType Type   `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is one issued access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Manager signs and verifies token pairs. Immutable after construction
// and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("token: access TTL must be strictly less than refresh TTL")
	}
	if cfg.RefreshBuffer < 0 || cfg.RefreshBuffer >= cfg.AccessTTL {
		return nil, errors.New("token: refresh buffer must be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("token: hs256 requires a shared secret")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("token: unsupported signing method")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// Issue builds and signs a fresh pair for the given subject and role.
// Each token carries its own jti, so successive pairs for one subject
// are never byte-identical.
func (m *Manager) Issue(subject, role string) (Pair, error) {
	access, err := m.sign(subject, role, TypeAccess, m.config.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.sign(subject, role, TypeRefresh, m.config.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify parses the token, checks its signature and registered claims,
// and enforces the expected typ claim.
func (m *Manager) Verify(tokenStr string, expected Type) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != expected {
		return nil, ErrWrongType
	}
	return claims, nil
}

// Refresh verifies a refresh token and, on success, issues a new pair —
// both tokens rotate, so the caller replaces its stored refresh token
// atomically with the exchange. The consumed token's claims are
// returned so callers can enforce one-time use or re-check the account.
func (m *Manager) Refresh(refreshToken string) (Pair, *Claims, error) {
	claims, err := m.Verify(refreshToken, TypeRefresh)
	if err != nil {
		return Pair{}, nil, err
	}
	pair, err := m.Issue(claims.Subject, claims.Role)
	if err != nil {
		return Pair{}, nil, err
	}
	return pair, claims, nil
}

// ExpiringSoon reports whether the claims' expiry falls inside the
// configured refresh buffer. Clients should refresh once this is true
// rather than waiting for a hard expiry.
func (m *Manager) ExpiringSoon(claims *Claims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return false
	}
	return m.now().Add(m.config.RefreshBuffer).After(claims.ExpiresAt.Time)
}

func (m *Manager) sign(subject, role string, typ Type, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(m.method(), claims).SignedString(key)
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (m *Manager) signKey() (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey, nil
	}
	return parseEdPrivateKey(m.config.PrivateKey)
}

func (m *Manager) verifyKey() (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey, nil
	}
	return parseEdPublicKey(m.config.PublicKey)
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 public key type")
	}
	return edKey, nil
}
