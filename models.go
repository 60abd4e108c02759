package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Permission is the user's access level
type Permission int

const (
	// PermissionUser is a regular account
	PermissionUser Permission = 0
	// PermissionAdmin can reach admin routes
	PermissionAdmin Permission = 1
)

// User is the user model
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Permission      Permission `bun:"permission,notnull" json:"permission"`
	Username        string     `bun:"username,notnull,unique" json:"username"`
	Email           string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash    string     `bun:"password_hash,notnull" json:"-"`
	Activated       bool       `bun:"activated,notnull" json:"activated"`
	EmailVerifiedAt *time.Time `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// IsAdmin reports whether the user carries the admin marker
func (u *User) IsAdmin() bool {
	return u != nil && u.Permission == PermissionAdmin
}

// ShortLivedToken is a single-use activation or verification token
type ShortLivedToken struct {
	bun.BaseModel `bun:"table:short_lived_tokens,alias:slt"`
	Token         uuid.UUID `bun:"token,pk,type:uuid" json:"token"`
	TokenType     TokenType `bun:"token_type,notnull" json:"token_type"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Age returns how long ago the token was issued
func (t *ShortLivedToken) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// RevokedToken marks a JWT as unusable until its natural expiry
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvk"`
	JTI           string    `bun:"jti,pk" json:"jti"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// ChallengeType is the ceremony a passkey challenge belongs to
type ChallengeType string

const (
	ChallengeTypeRegister     ChallengeType = "register"
	ChallengeTypeAuthenticate ChallengeType = "authenticate"
)

// PasskeyChallenge is a pending WebAuthn ceremony identified by its track id
type PasskeyChallenge struct {
	bun.BaseModel  `bun:"table:passkey_challenges,alias:pkc"`
	ID             uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	Challenge      string        `bun:"challenge,notnull" json:"challenge"`
	ChallengeType  ChallengeType `bun:"challenge_type,notnull" json:"challenge_type"`
	WebAuthnUserID string        `bun:"webauthn_user_id,notnull" json:"webauthn_user_id"`
	SessionData    []byte        `bun:"session_data,notnull" json:"-"`
	UserID         uuid.UUID     `bun:"user_id,notnull,type:uuid" json:"user_id"`
	CreatedAt      time.Time     `bun:"created_at,notnull" json:"created_at"`
}

// PasskeyCredential is a registered WebAuthn public key credential
type PasskeyCredential struct {
	bun.BaseModel  `bun:"table:passkey_credentials,alias:pcr"`
	ID             string    `bun:"id,pk" json:"id"`
	PublicKey      []byte    `bun:"public_key,notnull" json:"-"`
	WebAuthnUserID string    `bun:"webauthn_user_id,notnull" json:"-"`
	Counter        int64     `bun:"counter,notnull" json:"counter"`
	DeviceType     string    `bun:"device_type,notnull" json:"device_type"`
	BackedUp       bool      `bun:"backed_up,notnull" json:"backed_up"`
	Transports     []string  `bun:"transports,notnull" json:"transports"`
	UserID         uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
