package passkey_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
	"github.com/caffeine-addictt/greenbitessg-sub000/passkey"
)

type testDB struct{}

func (testDB) GetDriver() string { return "sqlite" }
func (testDB) GetDSN() string    { return "file::memory:" }
func (testDB) GetDebug() bool    { return false }

type testTokens struct{}

func (testTokens) GetAccessSecret() string  { return "access-secret-access-secret-0001" }
func (testTokens) GetRefreshSecret() string { return "refresh-secret-refresh-secret-01" }
func (testTokens) GetIssuer() string        { return "tests" }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockVerifier implements passkey.Verifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) BeginRegistration(subject *passkey.Subject) (*passkey.Ceremony, error) {
	args := m.Called(subject)
	c, _ := args.Get(0).(*passkey.Ceremony)
	return c, args.Error(1)
}

func (m *MockVerifier) FinishRegistration(subject *passkey.Subject, session []byte, signed []byte) (*passkey.VerifiedCredential, error) {
	args := m.Called(subject, session, signed)
	c, _ := args.Get(0).(*passkey.VerifiedCredential)
	return c, args.Error(1)
}

func (m *MockVerifier) BeginAuthentication(subject *passkey.Subject) (*passkey.Ceremony, error) {
	args := m.Called(subject)
	c, _ := args.Get(0).(*passkey.Ceremony)
	return c, args.Error(1)
}

func (m *MockVerifier) FinishAuthentication(subject *passkey.Subject, session []byte, signed []byte) (*passkey.VerifiedAssertion, error) {
	args := m.Called(subject, session, signed)
	a, _ := args.Get(0).(*passkey.VerifiedAssertion)
	return a, args.Error(1)
}

type fixture struct {
	clock    *testClock
	repo     auth.RepositoryManager
	codec    *auth.TokenCodec
	verifier *MockVerifier
	engine   *passkey.Engine
	user     *auth.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, dialect, err := auth.OpenDB(testDB{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, auth.Migrate(context.Background(), db.DB, dialect))

	f := &fixture{
		clock:    &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		verifier: new(MockVerifier),
	}

	f.repo = auth.NewRepositoryManager(db, f.clock)

	codec, err := auth.NewTokenCodec(testTokens{})
	require.NoError(t, err)
	f.codec = codec.WithClock(f.clock)

	f.engine = passkey.NewEngine(f.repo, f.codec, f.verifier).WithClock(f.clock)

	f.user, err = f.repo.Users().Register(context.Background(), &auth.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "x",
	})
	require.NoError(t, err)

	return f
}

func signedBody(id string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"id":       id,
		"rawId":    id,
		"type":     "public-key",
		"response": map[string]string{"clientDataJSON": "e30"},
	})
	return raw
}

func ceremony(challenge string) *passkey.Ceremony {
	return &passkey.Ceremony{
		Options:   map[string]string{"challenge": challenge},
		Challenge: challenge,
		Session:   []byte(`{"challenge":"` + challenge + `"}`),
	}
}

// storeCredential registers a credential with the given stored counter
func (f *fixture) storeCredential(t *testing.T, id string, counter int64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.repo.PasskeyCredentials().Create(ctx, &auth.PasskeyCredential{
		ID:             id,
		PublicKey:      []byte{1, 2, 3},
		WebAuthnUserID: passkey.EncodeID([]byte("handle")),
		DeviceType:     "singleDevice",
		UserID:         f.user.ID,
	}))

	if counter > 0 {
		ok, err := f.repo.PasskeyCredentials().AdvanceCounter(ctx, id, counter)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestRegistrationCeremony(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.verifier.On("BeginRegistration", mock.AnythingOfType("*passkey.Subject")).
		Return(ceremony("reg-1"), nil).Once()

	start, err := f.engine.BeginRegistration(ctx, f.user)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, start.Track)

	f.verifier.On("FinishRegistration", mock.AnythingOfType("*passkey.Subject"), []byte(`{"challenge":"reg-1"}`), mock.Anything).
		Return(&passkey.VerifiedCredential{
			ID:         "cred-1",
			PublicKey:  []byte{9, 9},
			Counter:    7,
			DeviceType: "multiDevice",
			BackedUp:   true,
			Transports: []string{"internal"},
		}, nil).Once()

	credential, err := f.engine.FinishRegistration(ctx, f.user, start.Track.String(), signedBody("cred-1"))
	require.NoError(t, err)
	assert.Equal(t, "cred-1", credential.ID)
	assert.EqualValues(t, 0, credential.Counter)

	list, err := f.engine.List(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "multiDevice", list[0].DeviceType)
	assert.True(t, list[0].BackedUp)

	// the track is single-use
	_, err = f.engine.FinishRegistration(ctx, f.user, start.Track.String(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrNoChallenge)

	f.verifier.AssertExpectations(t)
}

func TestRegistrationReusesHandle(t *testing.T) {
	f := newFixture(t)
	f.storeCredential(t, "cred-1", 0)

	f.verifier.On("BeginRegistration", mock.MatchedBy(func(s *passkey.Subject) bool {
		return string(s.Handle) == "handle" && len(s.Credentials) == 1
	})).Return(ceremony("reg-2"), nil).Once()

	_, err := f.engine.BeginRegistration(context.Background(), f.user)
	require.NoError(t, err)

	f.verifier.AssertExpectations(t)
}

func TestRegistrationRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.verifier.On("BeginRegistration", mock.Anything).Return(ceremony("reg-1"), nil)
	f.verifier.On("FinishRegistration", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	start, err := f.engine.BeginRegistration(ctx, f.user)
	require.NoError(t, err)

	_, err = f.engine.FinishRegistration(ctx, f.user, start.Track.String(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrRegisterFailed)

	// a failed attempt burns the track
	_, err = f.engine.FinishRegistration(ctx, f.user, start.Track.String(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrNoChallenge)
}

func TestRegistrationTrackChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.verifier.On("BeginRegistration", mock.Anything).Return(ceremony("reg-1"), nil)

	start, err := f.engine.BeginRegistration(ctx, f.user)
	require.NoError(t, err)

	_, err = f.engine.FinishRegistration(ctx, f.user, "not-a-uuid", signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrNoChallenge)

	_, err = f.engine.FinishRegistration(ctx, f.user, uuid.NewString(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrNoChallenge)

	_, err = f.engine.FinishRegistration(ctx, f.user, start.Track.String(), []byte(`{"id":"x"}`))
	require.Error(t, err)
	assert.Equal(t, auth.TextCodeValidation, auth.AsRichError(err).TextCode)

	f.clock.Advance(passkey.DefaultChallengeTTL)

	_, err = f.engine.FinishRegistration(ctx, f.user, start.Track.String(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrNoChallenge)

	f.verifier.AssertNotCalled(t, "FinishRegistration", mock.Anything, mock.Anything, mock.Anything)
}

func TestBeginAuthenticationNeedsPasskey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BeginAuthentication(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, passkey.ErrAccountNotFound)

	_, err = f.engine.BeginAuthentication(ctx, f.user.Email)
	assert.ErrorIs(t, err, passkey.ErrAccountNotFound)
}

func TestAuthenticationCeremony(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeCredential(t, "cred-1", 10)

	f.verifier.On("BeginAuthentication", mock.Anything).Return(ceremony("auth-1"), nil)
	f.verifier.On("FinishAuthentication", mock.Anything, mock.Anything, mock.Anything).
		Return(&passkey.VerifiedAssertion{CredentialID: "cred-1", Counter: 11}, nil).Once()

	start, err := f.engine.BeginAuthentication(ctx, f.user.Email)
	require.NoError(t, err)

	pair, err := f.engine.FinishAuthentication(ctx, start.Track.String(), signedBody("cred-1"))
	require.NoError(t, err)

	claims := f.codec.Verify(pair.AccessToken, auth.TokenKindAccess)
	require.NotNil(t, claims)
	assert.Equal(t, f.user.ID.String(), claims.Subject)

	stored, err := f.repo.PasskeyCredentials().GetByID(ctx, "cred-1")
	require.NoError(t, err)
	assert.EqualValues(t, 11, stored.Counter)

	// the challenge is gone after a successful login
	_, err = f.engine.FinishAuthentication(ctx, start.Track.String(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrNoChallenge)
}

func TestAuthenticationRejectsStaleCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeCredential(t, "cred-1", 10)

	f.verifier.On("BeginAuthentication", mock.Anything).Return(ceremony("auth-1"), nil)

	for _, counter := range []uint32{10, 9} {
		f.verifier.On("FinishAuthentication", mock.Anything, mock.Anything, mock.Anything).
			Return(&passkey.VerifiedAssertion{CredentialID: "cred-1", Counter: counter}, nil).Once()

		start, err := f.engine.BeginAuthentication(ctx, f.user.Email)
		require.NoError(t, err)

		pair, err := f.engine.FinishAuthentication(ctx, start.Track.String(), signedBody("cred-1"))
		assert.ErrorIs(t, err, passkey.ErrAuthenticateFailed)
		assert.Nil(t, pair)
	}

	stored, err := f.repo.PasskeyCredentials().GetByID(ctx, "cred-1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, stored.Counter)
}

func TestAuthenticationRejectsZeroCounterOnFreshCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeCredential(t, "cred-1", 0)

	f.verifier.On("BeginAuthentication", mock.Anything).Return(ceremony("auth-1"), nil)
	f.verifier.On("FinishAuthentication", mock.Anything, mock.Anything, mock.Anything).
		Return(&passkey.VerifiedAssertion{CredentialID: "cred-1", Counter: 0}, nil).Once()

	start, err := f.engine.BeginAuthentication(ctx, f.user.Email)
	require.NoError(t, err)

	pair, err := f.engine.FinishAuthentication(ctx, start.Track.String(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrAuthenticateFailed)
	assert.Nil(t, pair)

	stored, err := f.repo.PasskeyCredentials().GetByID(ctx, "cred-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, stored.Counter)
}

func TestAuthenticationRejectsCloneWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeCredential(t, "cred-1", 0)

	f.verifier.On("BeginAuthentication", mock.Anything).Return(ceremony("auth-1"), nil)
	f.verifier.On("FinishAuthentication", mock.Anything, mock.Anything, mock.Anything).
		Return(&passkey.VerifiedAssertion{CredentialID: "cred-1", Counter: 5, CloneWarning: true}, nil).Once()

	start, err := f.engine.BeginAuthentication(ctx, f.user.Email)
	require.NoError(t, err)

	_, err = f.engine.FinishAuthentication(ctx, start.Track.String(), signedBody("cred-1"))
	assert.ErrorIs(t, err, passkey.ErrAuthenticateFailed)
}

func TestAuthenticationRejectsForeignCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeCredential(t, "cred-1", 0)

	bob, err := f.repo.Users().Register(ctx, &auth.User{
		Username:     "bob",
		Email:        "bob@example.com",
		PasswordHash: "x",
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.PasskeyCredentials().Create(ctx, &auth.PasskeyCredential{
		ID:             "bob-cred",
		PublicKey:      []byte{1},
		WebAuthnUserID: passkey.EncodeID([]byte("bob")),
		DeviceType:     "singleDevice",
		UserID:         bob.ID,
	}))

	f.verifier.On("BeginAuthentication", mock.Anything).Return(ceremony("auth-1"), nil)

	start, err := f.engine.BeginAuthentication(ctx, f.user.Email)
	require.NoError(t, err)

	_, err = f.engine.FinishAuthentication(ctx, start.Track.String(), signedBody("bob-cred"))
	assert.ErrorIs(t, err, passkey.ErrAuthenticateFailed)

	start, err = f.engine.BeginAuthentication(ctx, f.user.Email)
	require.NoError(t, err)

	_, err = f.engine.FinishAuthentication(ctx, start.Track.String(), signedBody("missing"))
	assert.ErrorIs(t, err, passkey.ErrAuthenticateFailed)

	f.verifier.AssertNotCalled(t, "FinishAuthentication", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeletePasskey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeCredential(t, "cred-1", 0)

	assert.ErrorIs(t, f.engine.Delete(ctx, f.user, "missing"), passkey.ErrCredentialNotFound)
	require.NoError(t, f.engine.Delete(ctx, f.user, "cred-1"))

	list, err := f.engine.List(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, list)
}
