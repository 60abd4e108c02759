package passkey

import (
	"context"
	"crypto/rand"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

// DefaultChallengeTTL is how long a ceremony may stay open
const DefaultChallengeTTL = 5 * time.Minute

const userHandleSize = 64

// Start is returned by the begin steps. Track identifies the ceremony in
// the finish call.
type Start struct {
	Track   uuid.UUID `json:"track"`
	Options any       `json:"challenge"`
}

// Engine runs passkey registration and authentication ceremonies. Every
// track is single-use: it is consumed before verification so a failed
// attempt cannot be retried.
type Engine struct {
	repo         auth.RepositoryManager
	codec        *auth.TokenCodec
	verifier     Verifier
	clock        auth.Clock
	ttl          time.Duration
	logger       auth.Logger
	activitySink auth.ActivitySink
}

func NewEngine(repo auth.RepositoryManager, codec *auth.TokenCodec, verifier Verifier) *Engine {
	return &Engine{
		repo:         repo,
		codec:        codec,
		verifier:     verifier,
		clock:        auth.SystemClock(),
		ttl:          DefaultChallengeTTL,
		logger:       auth.DefaultLogger(),
		activitySink: auth.NoopActivitySink(),
	}
}

func (e *Engine) WithLogger(logger auth.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

func (e *Engine) WithClock(clock auth.Clock) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// WithChallengeTTL sets how long a challenge stays usable
func (e *Engine) WithChallengeTTL(ttl time.Duration) *Engine {
	if ttl > 0 {
		e.ttl = ttl
	}
	return e
}

func (e *Engine) WithActivitySink(sink auth.ActivitySink) *Engine {
	if sink != nil {
		e.activitySink = sink
	}
	return e
}

// ChallengeTTL returns the configured challenge lifetime
func (e *Engine) ChallengeTTL() time.Duration {
	return e.ttl
}

// BeginRegistration opens a registration ceremony for an authenticated user
func (e *Engine) BeginRegistration(ctx context.Context, user *auth.User) (*Start, error) {
	if user == nil {
		return nil, auth.ErrUserNotFound
	}

	subject, err := e.subjectFor(ctx, user, "")
	if err != nil {
		return nil, err
	}

	ceremony, err := e.verifier.BeginRegistration(subject)
	if err != nil {
		e.logger.Error("passkey registration options failed: %v", err)
		return nil, auth.ErrInternal
	}

	return e.persist(ctx, user, subject, ceremony, auth.ChallengeTypeRegister)
}

// FinishRegistration verifies the attestation for track and stores the new
// credential.
func (e *Engine) FinishRegistration(ctx context.Context, user *auth.User, track string, signed []byte) (*auth.PasskeyCredential, error) {
	if user == nil {
		return nil, auth.ErrUserNotFound
	}

	if _, err := ParseSignedResponse(signed); err != nil {
		return nil, err
	}

	challenge, err := e.consume(ctx, track, auth.ChallengeTypeRegister, user.ID)
	if err != nil {
		return nil, err
	}

	subject, err := e.subjectFor(ctx, user, challenge.WebAuthnUserID)
	if err != nil {
		return nil, err
	}

	verified, err := e.verifier.FinishRegistration(subject, challenge.SessionData, signed)
	if err != nil {
		e.logger.Info("passkey registration rejected for %s: %v", user.ID, err)
		return nil, ErrRegisterFailed
	}

	credential := &auth.PasskeyCredential{
		ID:             verified.ID,
		PublicKey:      verified.PublicKey,
		WebAuthnUserID: challenge.WebAuthnUserID,
		Counter:        0,
		DeviceType:     verified.DeviceType,
		BackedUp:       verified.BackedUp,
		Transports:     verified.Transports,
		UserID:         user.ID,
	}

	if err := e.repo.PasskeyCredentials().Create(ctx, credential); err != nil {
		e.logger.Error("passkey credential insert failed for %s: %v", user.ID, err)
		return nil, ErrRegisterFailed
	}

	auth.RecordActivity(ctx, e.activitySink, e.logger, auth.ActivityEvent{
		EventType: auth.ActivityEventPasskeyRegister,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"credential_id": credential.ID},
	})

	return credential, nil
}

// BeginAuthentication opens a login ceremony for the account behind email.
// The account must have at least one passkey.
func (e *Engine) BeginAuthentication(ctx context.Context, email string) (*Start, error) {
	user, err := e.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if auth.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	subject, err := e.subjectFor(ctx, user, "")
	if err != nil {
		return nil, err
	}

	if len(subject.Credentials) == 0 {
		return nil, ErrAccountNotFound
	}

	ceremony, err := e.verifier.BeginAuthentication(subject)
	if err != nil {
		e.logger.Error("passkey authentication options failed: %v", err)
		return nil, auth.ErrInternal
	}

	return e.persist(ctx, user, subject, ceremony, auth.ChallengeTypeAuthenticate)
}

// FinishAuthentication verifies the assertion for track and issues a token
// pair. The stored counter must move forward for the login to succeed.
func (e *Engine) FinishAuthentication(ctx context.Context, track string, signed []byte) (*auth.TokenPair, error) {
	body, err := ParseSignedResponse(signed)
	if err != nil {
		return nil, err
	}

	challenge, err := e.consume(ctx, track, auth.ChallengeTypeAuthenticate, uuid.Nil)
	if err != nil {
		return nil, err
	}

	credential, err := e.repo.PasskeyCredentials().GetByID(ctx, body.ID)
	if err != nil {
		if !auth.IsNotFound(err) {
			e.logger.Error("passkey credential lookup failed: %v", err)
		}
		return nil, ErrAuthenticateFailed
	}

	if credential.UserID != challenge.UserID {
		return nil, ErrAuthenticateFailed
	}

	user, err := e.repo.Users().GetByID(ctx, credential.UserID.String())
	if err != nil {
		return nil, ErrAuthenticateFailed
	}

	subject, err := e.subjectFor(ctx, user, challenge.WebAuthnUserID)
	if err != nil {
		return nil, err
	}

	assertion, err := e.verifier.FinishAuthentication(subject, challenge.SessionData, signed)
	if err != nil {
		e.logger.Info("passkey assertion rejected for %s: %v", user.ID, err)
		return nil, ErrAuthenticateFailed
	}

	if assertion.CloneWarning || assertion.CredentialID != credential.ID {
		e.logger.Warn("passkey %s failed the counter check", credential.ID)
		return nil, ErrAuthenticateFailed
	}

	advanced, err := e.repo.PasskeyCredentials().AdvanceCounter(ctx, credential.ID, int64(assertion.Counter))
	if err != nil {
		e.logger.Error("passkey counter update failed: %v", err)
		return nil, ErrAuthenticateFailed
	}
	if !advanced {
		e.logger.Warn("passkey %s replayed counter %d", credential.ID, assertion.Counter)
		return nil, ErrAuthenticateFailed
	}

	pair, err := e.codec.IssuePair(user.ID.String())
	if err != nil {
		return nil, err
	}

	auth.RecordActivity(ctx, e.activitySink, e.logger, auth.ActivityEvent{
		EventType: auth.ActivityEventPasskeyLogin,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"credential_id": credential.ID},
	})

	return pair, nil
}

// List returns the passkeys registered by user
func (e *Engine) List(ctx context.Context, user *auth.User) ([]*auth.PasskeyCredential, error) {
	if user == nil {
		return nil, auth.ErrUserNotFound
	}
	return e.repo.PasskeyCredentials().ListByUser(ctx, user.ID)
}

// Delete removes one of user's passkeys
func (e *Engine) Delete(ctx context.Context, user *auth.User, id string) error {
	if user == nil {
		return auth.ErrUserNotFound
	}
	if err := e.repo.PasskeyCredentials().Delete(ctx, user.ID, id); err != nil {
		if auth.IsNotFound(err) {
			return ErrCredentialNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete passkey")
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, user *auth.User, subject *Subject, ceremony *Ceremony, challengeType auth.ChallengeType) (*Start, error) {
	challenge := &auth.PasskeyChallenge{
		Challenge:      ceremony.Challenge,
		ChallengeType:  challengeType,
		WebAuthnUserID: EncodeID(subject.Handle),
		SessionData:    ceremony.Session,
		UserID:         user.ID,
	}

	if err := e.repo.PasskeyChallenges().Create(ctx, challenge); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store passkey challenge")
	}

	return &Start{Track: challenge.ID, Options: ceremony.Options}, nil
}

// consume takes the challenge out of the store. Malformed, missing and
// expired tracks are indistinguishable to the caller.
func (e *Engine) consume(ctx context.Context, track string, challengeType auth.ChallengeType, owner uuid.UUID) (*auth.PasskeyChallenge, error) {
	if !auth.IsUUIDv4(track) {
		return nil, ErrNoChallenge
	}

	challenge, err := e.repo.PasskeyChallenges().Consume(ctx, uuid.MustParse(track), challengeType, owner)
	if err != nil {
		if auth.IsNotFound(err) {
			return nil, ErrNoChallenge
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load passkey challenge")
	}

	if !auth.IsWithinThresholdPeriod(e.clock.Now(), challenge.CreatedAt, e.ttl) {
		return nil, ErrNoChallenge
	}

	return challenge, nil
}

// subjectFor builds the ceremony subject. All credentials of a user share
// one handle: the stored one, the challenge's, or a fresh random one.
func (e *Engine) subjectFor(ctx context.Context, user *auth.User, handle string) (*Subject, error) {
	credentials, err := e.repo.PasskeyCredentials().ListByUser(ctx, user.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list passkeys")
	}

	if handle == "" && len(credentials) > 0 {
		handle = credentials[0].WebAuthnUserID
	}

	var raw []byte
	if handle != "" {
		if raw, err = DecodeID(handle); err != nil {
			return nil, ErrNoChallenge
		}
	} else {
		raw = make([]byte, userHandleSize)
		if _, err := rand.Read(raw); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate user handle")
		}
	}

	return &Subject{
		Handle:      raw,
		Name:        user.Email,
		DisplayName: user.Username,
		Credentials: credentials,
	}, nil
}
