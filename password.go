package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

// Digest layout: hex(derived key) followed by hex(salt).
const (
	passwordSaltSize  = 16
	passwordKeySize   = 64
	passwordDigestLen = (passwordKeySize + passwordSaltSize) * 2

	// MinPasswordIterations is the lowest accepted PBKDF2 round count
	MinPasswordIterations = 300

	// DefaultPasswordIterations is used when no count is configured
	DefaultPasswordIterations = 310_000
)

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

type pbkdf2Hasher struct {
	iterations int
}

// NewPasswordHasher returns a PBKDF2-SHA512 hasher. Counts below
// MinPasswordIterations are raised to it.
func NewPasswordHasher(iterations int) PasswordHasher {
	if iterations <= 0 {
		iterations = passwordIterations()
	}
	if iterations < MinPasswordIterations {
		iterations = MinPasswordIterations
	}
	return pbkdf2Hasher{iterations: iterations}
}

func (h pbkdf2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, passwordSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password salt")
	}

	key := h.derive(password, salt)
	return hex.EncodeToString(key) + hex.EncodeToString(salt), nil
}

// Verify never fails loudly: a malformed digest is a mismatch.
func (h pbkdf2Hasher) Verify(password, digest string) bool {
	if len(digest) != passwordDigestLen {
		return false
	}

	key, err := hex.DecodeString(digest[:passwordKeySize*2])
	if err != nil {
		return false
	}

	salt, err := hex.DecodeString(digest[passwordKeySize*2:])
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(h.derive(password, salt), key) == 1
}

func (h pbkdf2Hasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.iterations, passwordKeySize, sha512.New)
}
