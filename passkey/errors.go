package passkey

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoChallenge        = "PASSKEY_NO_CHALLENGE"
	TextCodeRegisterFailed     = "PASSKEY_REGISTER_FAILED"
	TextCodeAccountNotFound    = "PASSKEY_ACCOUNT_NOT_FOUND"
	TextCodeAuthenticateFailed = "PASSKEY_AUTHENTICATE_FAILED"
	TextCodeCredentialNotFound = "PASSKEY_CREDENTIAL_NOT_FOUND"
)

// ErrNoChallenge covers a malformed, unknown, foreign or expired track
var ErrNoChallenge = goerrors.New("No passkey challenges found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeNoChallenge)

var ErrRegisterFailed = goerrors.New("Failed to register passkey", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeRegisterFailed)

var ErrAccountNotFound = goerrors.New("Account does not exist!", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrAuthenticateFailed is deliberately generic, it does not say which
// check rejected the assertion.
var ErrAuthenticateFailed = goerrors.New("Failed to authenticate passkey", goerrors.CategoryAuth).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeAuthenticateFailed)

var ErrCredentialNotFound = goerrors.New("Passkey not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeCredentialNotFound)
