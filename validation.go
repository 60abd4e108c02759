package auth

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	passwordSpecial = `!#$%&?'"`
)

// UsernameRules are the constraints on a username
var UsernameRules = []validation.Rule{
	validation.Required,
	validation.Length(3, 20),
	validation.Match(usernamePattern).Error("must only contain letters, digits, '-' and '_'"),
}

// PasswordRules are the constraints on a new password
var PasswordRules = []validation.Rule{
	validation.Required,
	validation.Length(8, 0),
	validation.By(passwordStrength),
}

// EmailRules are the constraints on an email address
var EmailRules = []validation.Rule{
	validation.Required,
	is.Email,
}

func passwordStrength(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecial, r):
			special = true
		}
	}

	switch {
	case !lower:
		return errors.New("must contain at least one lowercase letter")
	case !upper:
		return errors.New("must contain at least one uppercase letter")
	case !digit:
		return errors.New("must contain at least one digit")
	case !special:
		return errors.New("must contain at least one of " + passwordSpecial)
	}
	return nil
}

// IsUUIDv4 reports whether s is shaped like a version 4 uuid. Ids that
// fail it are rejected before any store lookup.
func IsUUIDv4(s string) bool {
	return s != "" && is.UUIDv4.Validate(s) == nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
