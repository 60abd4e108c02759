package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

func TestPasskeyChallengesConsumeOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "alice")

	challenge := &auth.PasskeyChallenge{
		Challenge:      "abc",
		ChallengeType:  auth.ChallengeTypeRegister,
		WebAuthnUserID: "handle",
		SessionData:    []byte(`{}`),
		UserID:         user.ID,
	}
	require.NoError(t, h.repo.PasskeyChallenges().Create(ctx, challenge))
	require.NotEqual(t, uuid.Nil, challenge.ID)

	_, err := h.repo.PasskeyChallenges().Consume(ctx, challenge.ID, auth.ChallengeTypeAuthenticate, uuid.Nil)
	assert.True(t, auth.IsNotFound(err))

	_, err = h.repo.PasskeyChallenges().Consume(ctx, challenge.ID, auth.ChallengeTypeRegister, uuid.New())
	assert.True(t, auth.IsNotFound(err))

	got, err := h.repo.PasskeyChallenges().Consume(ctx, challenge.ID, auth.ChallengeTypeRegister, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Challenge)

	_, err = h.repo.PasskeyChallenges().Consume(ctx, challenge.ID, auth.ChallengeTypeRegister, user.ID)
	assert.True(t, auth.IsNotFound(err))
}

func TestPasskeyChallengesSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "alice")

	for i := 0; i < 2; i++ {
		require.NoError(t, h.repo.PasskeyChallenges().Create(ctx, &auth.PasskeyChallenge{
			Challenge:      "abc",
			ChallengeType:  auth.ChallengeTypeAuthenticate,
			WebAuthnUserID: "handle",
			SessionData:    []byte(`{}`),
			UserID:         user.ID,
		}))
		h.clock.Advance(4 * time.Minute)
	}

	// first is 8m old, second 4m old
	n, err := h.repo.PasskeyChallenges().Sweep(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPasskeyCredentialsCounter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "alice")

	require.NoError(t, h.repo.PasskeyCredentials().Create(ctx, &auth.PasskeyCredential{
		ID:             "cred-1",
		PublicKey:      []byte{1, 2, 3},
		WebAuthnUserID: "handle",
		DeviceType:     "singleDevice",
		UserID:         user.ID,
	}))

	tests := []struct {
		name    string
		counter int64
		ok      bool
	}{
		{name: "zero does not advance", counter: 0, ok: false},
		{name: "advance", counter: 5, ok: true},
		{name: "replay", counter: 5, ok: false},
		{name: "rollback", counter: 3, ok: false},
		{name: "zero after use", counter: 0, ok: false},
		{name: "advance again", counter: 6, ok: true},
	}

	for _, tt := range tests {
		ok, err := h.repo.PasskeyCredentials().AdvanceCounter(ctx, "cred-1", tt.counter)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
	}

	stored, err := h.repo.PasskeyCredentials().GetByID(ctx, "cred-1")
	require.NoError(t, err)
	assert.EqualValues(t, 6, stored.Counter)
	assert.Equal(t, []string{}, stored.Transports)
}

func TestPasskeyCredentialsListAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")

	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, h.repo.PasskeyCredentials().Create(ctx, &auth.PasskeyCredential{
			ID:             id,
			PublicKey:      []byte{1},
			WebAuthnUserID: "handle",
			DeviceType:     "multiDevice",
			BackedUp:       true,
			Transports:     []string{"internal"},
			UserID:         alice.ID,
		}))
	}

	list, err := h.repo.PasskeyCredentials().ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = h.repo.PasskeyCredentials().ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = h.repo.PasskeyCredentials().Delete(ctx, bob.ID, "a1")
	assert.True(t, auth.IsNotFound(err))

	require.NoError(t, h.repo.PasskeyCredentials().Delete(ctx, alice.ID, "a1"))

	_, err = h.repo.PasskeyCredentials().GetByID(ctx, "a1")
	assert.True(t, auth.IsNotFound(err))
}
