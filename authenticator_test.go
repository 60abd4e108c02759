package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

func TestLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "alice")

	t.Run("Successful login", func(t *testing.T) {
		pair, got, err := h.auther.Login(ctx, user.Email, testPassword)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		access := h.codec.Verify(pair.AccessToken, auth.TokenKindAccess)
		require.NotNil(t, access)
		assert.Equal(t, user.ID.String(), access.Subject)

		refresh := h.codec.Verify(pair.RefreshToken, auth.TokenKindRefresh)
		require.NotNil(t, refresh)
		assert.Equal(t, user.ID.String(), refresh.Subject)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, _, err := h.auther.Login(ctx, user.Email, "Wr0ng!Pass")
		assert.ErrorIs(t, err, auth.ErrMismatchedPassword)
	})

	t.Run("Unknown email looks the same", func(t *testing.T) {
		_, _, err := h.auther.Login(ctx, "nobody@example.com", testPassword)
		assert.ErrorIs(t, err, auth.ErrMismatchedPassword)
	})

	types := h.events.Types()
	assert.Contains(t, types, auth.ActivityEventLoginSuccess)
	assert.Contains(t, types, auth.ActivityEventLoginFailure)
}

func TestRefreshRotatesPair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "alice")

	pair, _, err := h.auther.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)

	// an expired access token can still be retired
	h.clock.Advance(25 * time.Hour)

	_, refresh, err := h.auther.Authenticate(ctx, pair.RefreshToken, auth.GateOptions{Kind: auth.TokenKindRefresh})
	require.NoError(t, err)

	next, err := h.auther.Refresh(ctx, refresh, pair.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, _, err = h.auther.Authenticate(ctx, pair.RefreshToken, auth.GateOptions{Kind: auth.TokenKindRefresh})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, _, err = h.auther.Authenticate(ctx, pair.AccessToken, auth.GateOptions{AllowExpired: true})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, _, err = h.auther.Authenticate(ctx, next.AccessToken, auth.GateOptions{})
	assert.NoError(t, err)

	assert.Contains(t, h.events.Types(), auth.ActivityEventRefresh)
}

func TestRefreshRejectsForeignAccessToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")

	alicePair, _, err := h.auther.Login(ctx, alice.Email, testPassword)
	require.NoError(t, err)
	bobPair, _, err := h.auther.Login(ctx, bob.Email, testPassword)
	require.NoError(t, err)

	refresh := h.codec.Verify(alicePair.RefreshToken, auth.TokenKindRefresh)
	require.NotNil(t, refresh)

	_, err = h.auther.Refresh(ctx, refresh, bobPair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = h.auther.Refresh(ctx, refresh, alicePair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = h.auther.Refresh(ctx, nil, alicePair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// nothing was revoked by the failed attempts
	_, _, err = h.auther.Authenticate(ctx, alicePair.RefreshToken, auth.GateOptions{Kind: auth.TokenKindRefresh})
	assert.NoError(t, err)
}

func TestInvalidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "alice")

	pair, _, err := h.auther.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)

	refresh := h.codec.Verify(pair.RefreshToken, auth.TokenKindRefresh)
	require.NoError(t, h.auther.Invalidate(ctx, refresh, pair.AccessToken))

	_, _, err = h.auther.Authenticate(ctx, pair.AccessToken, auth.GateOptions{})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, _, err = h.auther.Authenticate(ctx, pair.RefreshToken, auth.GateOptions{Kind: auth.TokenKindRefresh})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// a second invalidate of the same pair is harmless
	assert.NoError(t, h.auther.Invalidate(ctx, refresh, pair.AccessToken))
}

func TestAvailability(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "alice")

	out, err := h.auther.Availability(context.Background(), "alice", "free@example.com")
	require.NoError(t, err)
	assert.True(t, out.UsernameTaken)
	assert.False(t, out.EmailTaken)

	out, err = h.auther.Availability(context.Background(), "", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, out.UsernameTaken)
	assert.True(t, out.EmailTaken)
}
