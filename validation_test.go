package auth_test

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

func TestPasswordRules(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{password: testPassword, valid: true},
		{password: "Ab1!", valid: false},
		{password: "alllower1!", valid: false},
		{password: "ALLUPPER1!", valid: false},
		{password: "NoDigits!!", valid: false},
		{password: "NoSpecial12", valid: false},
		{password: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := validation.Validate(tt.password, auth.PasswordRules...)
			assert.Equal(t, tt.valid, err == nil, err)
		})
	}
}

func TestUsernameRules(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{username: "alice_01", valid: true},
		{username: "a-b", valid: true},
		{username: "ab", valid: false},
		{username: "this-username-is-too-long", valid: false},
		{username: "has space", valid: false},
		{username: "émile", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := validation.Validate(tt.username, auth.UsernameRules...)
			assert.Equal(t, tt.valid, err == nil, err)
		})
	}
}

func TestIsUUIDv4(t *testing.T) {
	assert.True(t, auth.IsUUIDv4(uuid.NewString()))
	assert.False(t, auth.IsUUIDv4(""))
	assert.False(t, auth.IsUUIDv4("not-a-uuid"))
	assert.False(t, auth.IsUUIDv4(uuid.Must(uuid.NewUUID()).String()))
}

func TestNewValidationErrorKeepsFields(t *testing.T) {
	err := auth.NewValidationError(validation.Errors{
		"username": errors.New("cannot be blank"),
		"email":    errors.New("cannot be blank"),
	})

	entries := auth.ErrorEntries(err)
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "email", entries[0].Context["key"])
		assert.Equal(t, "username", entries[1].Context["key"])
	}
	assert.Equal(t, 400, err.Code)
}
