package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenDurations bounds a token kind: Max is its lifetime and Min is how long
// it stays fresh.
type TokenDurations struct {
	Min time.Duration
	Max time.Duration
}

var tokenDurations = map[TokenKind]TokenDurations{
	TokenKindAccess:  {Min: 5 * time.Minute, Max: 24 * time.Hour},
	TokenKindRefresh: {Min: 24 * time.Hour, Max: 30 * 24 * time.Hour},
}

// DurationsFor returns the lifetime bounds of the token kind
func DurationsFor(kind TokenKind) (TokenDurations, bool) {
	d, ok := tokenDurations[kind]
	return d, ok
}

// TokenClaims is the payload carried by access and refresh tokens
type TokenClaims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"knd,omitempty"`
}

// UserID parses the subject as a user id
func (c *TokenClaims) UserID() (uuid.UUID, error) {
	if c == nil {
		return uuid.Nil, fmt.Errorf("nil claims")
	}
	return uuid.Parse(c.Subject)
}

// Expiry returns the exp claim or the zero time
func (c *TokenClaims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenPair is what a successful login or refresh hands back
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenCodec signs, verifies and decodes access and refresh tokens
type TokenCodec struct {
	secrets map[TokenKind][]byte
	issuer  string
	clock   Clock
	logger  Logger
}

// NewTokenCodec builds a codec. The two secrets must be non-empty and
// different.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	access := cfg.GetAccessSecret()
	refresh := cfg.GetRefreshSecret()

	if access == "" || refresh == "" {
		return nil, goerrors.New("token secrets must not be empty", goerrors.CategoryInternal)
	}

	if access == refresh {
		return nil, goerrors.New("access and refresh secrets must differ", goerrors.CategoryInternal)
	}

	return &TokenCodec{
		secrets: map[TokenKind][]byte{
			TokenKindAccess:  []byte(access),
			TokenKindRefresh: []byte(refresh),
		},
		issuer: cfg.GetIssuer(),
		clock:  systemClock{},
		logger: defLogger{},
	}, nil
}

// WithClock overrides the time source
func (c *TokenCodec) WithClock(clock Clock) *TokenCodec {
	c.clock = normalizeClock(clock)
	return c
}

// WithLogger overrides the logger
func (c *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func (c *TokenCodec) now() time.Time {
	return c.clock.Now().Truncate(time.Second)
}

// Sign issues a token of the given kind for subject
func (c *TokenCodec) Sign(subject string, kind TokenKind) (string, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return "", goerrors.New("unknown token kind", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"kind": string(kind)})
	}

	now := c.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDurations[kind].Max)),
		},
		Kind: kind,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// IssuePair signs a fresh access and refresh token for subject
func (c *TokenCodec) IssuePair(subject string) (*TokenPair, error) {
	access, err := c.Sign(subject, TokenKindAccess)
	if err != nil {
		return nil, err
	}

	refresh, err := c.Sign(subject, TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature and structure with the secret of kind. Expiry is
// left to the caller so an expired token can be told apart from a forged
// one. Any failure returns nil.
func (c *TokenCodec) Verify(tokenString string, kind TokenKind) *TokenClaims {
	secret, ok := c.secrets[kind]
	if !ok || tokenString == "" {
		return nil
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		c.logger.Debug("token verification failed for kind %s: %v", kind, err)
		return nil
	}

	if !c.wellFormed(claims, kind) {
		return nil
	}

	return claims
}

// Decode reads the payload without checking the signature. Only use it on
// tokens whose scope is already established.
func (c *TokenCodec) Decode(tokenString string) *TokenClaims {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

// IsFresh reports whether the token was issued within the kind's minimum
// duration.
func (c *TokenCodec) IsFresh(claims *TokenClaims, kind TokenKind) bool {
	if claims == nil || claims.IssuedAt == nil {
		return false
	}
	d, ok := tokenDurations[kind]
	if !ok {
		return false
	}
	return c.now().Sub(claims.IssuedAt.Time) <= d.Min
}

// IsExpired reports whether exp has been reached, in whole seconds
func (c *TokenCodec) IsExpired(claims *TokenClaims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return c.now().Unix()-claims.ExpiresAt.Unix() >= 0
}

func (c *TokenCodec) wellFormed(claims *TokenClaims, kind TokenKind) bool {
	if claims.Subject == "" || claims.ID == "" {
		return false
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return false
	}
	if claims.Kind != "" && claims.Kind != kind {
		return false
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return false
	}
	return true
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
