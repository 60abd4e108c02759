package auth

import (
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoToken            = "NO_TOKEN"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenNotFresh      = "TOKEN_NOT_FRESH"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeUsernameTaken      = "USERNAME_TAKEN"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeAlreadyActivated   = "ALREADY_ACTIVATED"
	TextCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	TextCodeShortTokenExpired  = "SHORT_TOKEN_EXPIRED"
	TextCodeNoTokenToRecreate  = "NO_TOKEN_TO_RECREATE"
	TextCodeRecreateTooSoon    = "RECREATE_TOO_SOON"
	TextCodeEmailUnreachable   = "EMAIL_UNREACHABLE"
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeInternal           = "INTERNAL"
)

var ErrNoToken = goerrors.New("No token provided!", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeNoToken)

var ErrInvalidToken = goerrors.New("Invalid token!", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidToken)

var ErrTokenExpired = goerrors.New("Token expired!", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

var ErrTokenNotFresh = goerrors.New("Token no longer fresh!", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenNotFresh)

var ErrUserNotFound = goerrors.New("User does not exist!", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUserNotFound)

var ErrUnauthorized = goerrors.New("Unauthorized!", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthorized)

// ErrMismatchedPassword is returned for both an unknown email and a wrong
// password.
var ErrMismatchedPassword = goerrors.New("Invalid email or password", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidCredentials)

var ErrUsernameTaken = goerrors.New("Username already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeUsernameTaken)

var ErrEmailTaken = goerrors.New("Email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmailTaken)

var ErrAlreadyActivated = goerrors.New("Already activated", goerrors.CategoryConflict).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeAlreadyActivated)

var ErrTokenNotFound = goerrors.New("Token not found!", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeTokenNotFound)

var ErrShortTokenExpired = goerrors.New("Token is expired!", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeShortTokenExpired)

var ErrNoTokenToRecreate = goerrors.New("No such token to recreate!", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeNoTokenToRecreate)

var ErrRecreateTooSoon = goerrors.New("Recreating token too quickly!", goerrors.CategoryRateLimit).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeRecreateTooSoon)

// ErrEmailUnreachable does not undo the state change that preceded the
// send.
var ErrEmailUnreachable = goerrors.New("Email could not be reached", goerrors.CategoryOperation).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeEmailUnreachable)

var ErrInternal = goerrors.New("Something went wrong!", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeInternal)

// ErrorEntry is the client facing shape of a single error
type ErrorEntry struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

const validationFieldsKey = "fields"

// NewValidationError converts ozzo validation errors into a rich error that
// keeps one entry per field.
func NewValidationError(err error) *goerrors.Error {
	entries := []ErrorEntry{}

	if verrs, ok := err.(validation.Errors); ok {
		keys := make([]string, 0, len(verrs))
		for k := range verrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if verrs[k] == nil {
				continue
			}
			entries = append(entries, ErrorEntry{
				Message: verrs[k].Error(),
				Context: map[string]any{"key": k},
			})
		}
	} else if err != nil {
		entries = append(entries, ErrorEntry{Message: err.Error()})
	}

	return goerrors.New("Invalid request payload", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation).
		WithMetadata(map[string]any{
			validationFieldsKey: entries,
		})
}

// ErrorEntries renders a rich error as the list of entries sent to clients
func ErrorEntries(err *goerrors.Error) []ErrorEntry {
	if err == nil {
		return nil
	}

	if err.Category == goerrors.CategoryValidation && err.Metadata != nil {
		if entries, ok := err.Metadata[validationFieldsKey].([]ErrorEntry); ok && len(entries) > 0 {
			return entries
		}
	}

	return []ErrorEntry{{Message: err.Message}}
}

// AsRichError unwraps err into a rich error. Anything that is not already a
// rich error maps to ErrInternal.
func AsRichError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return ErrInternal
}

// IsRichError reports whether err carries the same text code as target
func IsRichError(err error, target *goerrors.Error) bool {
	if err == nil || target == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr == target || (richErr.TextCode != "" && richErr.TextCode == target.TextCode)
}
