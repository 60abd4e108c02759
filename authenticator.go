package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// dummyDigest is well formed so an unknown email costs a full key
// derivation, same as a wrong password.
var dummyDigest = strings.Repeat("0", passwordDigestLen)

// Auther composes the stores and the codec into the session flows
type Auther struct {
	repo         RepositoryManager
	codec        *TokenCodec
	hasher       PasswordHasher
	notifier     *Notifier
	clock        Clock
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repo RepositoryManager, codec *TokenCodec, hasher PasswordHasher) *Auther {
	if hasher == nil {
		hasher = NewPasswordHasher(0)
	}
	return &Auther{
		repo:         repo,
		codec:        codec,
		hasher:       hasher,
		clock:        SystemClock(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNotifier sets the notifier used by the flows that send email
func (s *Auther) WithNotifier(notifier *Notifier) *Auther {
	s.notifier = notifier
	return s
}

// WithClock overrides the time source used for token windows
func (s *Auther) WithClock(clock Clock) *Auther {
	s.clock = normalizeClock(clock)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Codec returns the token codec used by this Auther
func (s *Auther) Codec() *TokenCodec {
	return s.codec
}

// Repository returns the repository manager used by this Auther
func (s *Auther) Repository() RepositoryManager {
	return s.repo
}

// Hasher returns the password hasher used by this Auther
func (s *Auther) Hasher() PasswordHasher {
	return s.hasher
}

// Login checks the credentials and issues a token pair. No server side
// session is created.
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, *User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if !IsNotFound(err) {
			s.logger.Error("Login user lookup error: %v", err)
			return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
		}
		s.hasher.Verify(password, dummyDigest)
		s.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"email": email})
		return nil, nil, ErrMismatchedPassword
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{"email": email})
		return nil, nil, ErrMismatchedPassword
	}

	pair, err := s.codec.IssuePair(user.ID.String())
	if err != nil {
		return nil, nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)

	return pair, user, nil
}

// Refresh retires the presented refresh token together with accessToken and
// issues a new pair. A refresh token is single-use.
func (s *Auther) Refresh(ctx context.Context, refresh *TokenClaims, accessToken string) (*TokenPair, error) {
	userID, err := s.revokePair(ctx, refresh, accessToken)
	if err != nil {
		return nil, err
	}

	pair, err := s.codec.IssuePair(userID.String())
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventRefresh, userID.String(), nil)

	return pair, nil
}

// Invalidate revokes both tokens without issuing new ones
func (s *Auther) Invalidate(ctx context.Context, refresh *TokenClaims, accessToken string) error {
	userID, err := s.revokePair(ctx, refresh, accessToken)
	if err != nil {
		return err
	}

	s.emit(ctx, ActivityEventLogout, userID.String(), nil)

	return nil
}

// Availability reports whether username and email are free. This is the one
// place where account existence is disclosed on purpose.
func (s *Auther) Availability(ctx context.Context, username, email string) (*Availability, error) {
	out, err := s.repo.Users().Availability(ctx, strings.TrimSpace(username), strings.TrimSpace(email))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check availability")
	}
	return out, nil
}

func (s *Auther) revokePair(ctx context.Context, refresh *TokenClaims, accessToken string) (uuid.UUID, error) {
	if refresh == nil {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := refresh.UserID()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	// the access token may already be expired, its signature must still hold
	access := s.codec.Verify(accessToken, TokenKindAccess)
	if access == nil || access.Subject != refresh.Subject {
		return uuid.Nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Revocations().RevokeTx(ctx, tx, refresh.ID, refresh.Expiry(), userID); err != nil {
			return err
		}
		return s.repo.Revocations().RevokeTx(ctx, tx, access.ID, access.Expiry(), userID)
	})

	if err != nil {
		s.logger.Error("token revocation failed: %v", err)
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke tokens")
	}

	return userID, nil
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	RecordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Metadata:  metadata,
	})
}
