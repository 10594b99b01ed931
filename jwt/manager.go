package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the access-token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret (HMAC-SHA256).
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"

	// MinSecretBytes is the shortest accepted HS256 secret.
	MinSecretBytes = 32
)

var (
	// ErrWeakSecret is returned by NewManager for HS256 secrets shorter than
	// MinSecretBytes.
	ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")
	// ErrInvalidToken is returned by ParseAccess for every rejected token.
	ErrInvalidToken = errors.New("invalid access token")
)

// Config configures a Manager.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	// Secret is the HS256 key.
	Secret []byte
	// PrivateKey and PublicKey are Ed25519 keys, raw or PEM encoded. A
	// verify-only Manager needs just PublicKey.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
	// Now overrides the clock used for iat/exp and validation.
	Now func() time.Time
}

// AccessClaims is the claim set carried by access tokens.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and verifies access tokens.
type Manager struct {
	config     Config
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	publicKey  ed25519.PublicKey
	parserOpts []jwt.ParserOption
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access token TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway must be within [0, 2m]")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256, "":
		if len(cfg.Secret) < MinSecretBytes {
			return nil, ErrWeakSecret
		}
		m.config.SigningMethod = MethodHS256
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.Secret
		m.verifyKey = cfg.Secret
	case MethodEd25519:
		if len(cfg.PublicKey) == 0 && len(cfg.PrivateKey) == 0 {
			return nil, errors.New("ed25519 requires a private or public key")
		}
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.publicKey = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			if m.publicKey != nil && !m.publicKey.Equal(pub) {
				return nil, errors.New("ed25519 public key does not match private key")
			}
			m.publicKey = pub
		}
		m.verifyKey = m.publicKey
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	m.parserOpts = []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		m.parserOpts = append(m.parserOpts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		m.parserOpts = append(m.parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		m.parserOpts = append(m.parserOpts, jwt.WithAudience(cfg.Audience))
	}

	return m, nil
}

// Algorithm returns the JOSE algorithm name, for example "HS256".
func (m *Manager) Algorithm() string {
	return m.method.Alg()
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.AccessTTL
}

// Issuer returns the configured issuer, possibly empty.
func (m *Manager) Issuer() string {
	return m.config.Issuer
}

// CreateAccess signs a token for subject carrying role. Issuer and audience
// are included only when configured.
func (m *Manager) CreateAccess(subject, role string) (string, error) {
	if m.signKey == nil {
		return "", errors.New("manager has no signing key")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := m.config.Now()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			ID:        id.String(),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.signKey)
}

// ParseAccess verifies tokenStr and returns its claims. Every failure, from
// malformed input to an expired or foreign token, is reported as an error
// wrapping ErrInvalidToken.
func (m *Manager) ParseAccess(tokenStr string) (claims *AccessClaims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, fmt.Errorf("%w: %v", ErrInvalidToken, r)
		}
	}()

	parser := jwt.NewParser(m.parserOpts...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if m.config.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	parsed, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || parsed.Subject == "" {
		return nil, ErrInvalidToken
	}
	return parsed, nil
}

// KeySet returns the public verification keys as a JWK set. Symmetric
// secrets are never published, so HS256 managers return an empty set.
func (m *Manager) KeySet() jose.JSONWebKeySet {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	if m.publicKey == nil {
		return set
	}
	kid := m.config.KeyID
	if kid == "" {
		kid = "default"
	}
	set.Keys = append(set.Keys, jose.JSONWebKey{
		Key:       m.publicKey,
		KeyID:     kid,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	})
	return set
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if len(key) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
