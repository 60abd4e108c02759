package jwtware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetExtractorsSkipsMalformedLookups(t *testing.T) {
	extractors := GetExtractors("header:Authorization, cookie, query:auth_token,bogus:x")
	require.Len(t, extractors, 2)
}

func TestGetDefaultConfigPanicsWithoutAuthenticator(t *testing.T) {
	require.Panics(t, func() {
		GetDefaultConfig(Config{})
	})
}
