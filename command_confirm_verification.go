package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ConfirmVerificationMessage struct {
	User  *User  `json:"-"`
	Token string `json:"token"`
}

func (e ConfirmVerificationMessage) Type() string { return "user.verify" }

func (e ConfirmVerificationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
	)
}

// ConfirmVerificationHandler consumes a verification token and stamps the
// user's email as verified.
type ConfirmVerificationHandler struct {
	repo         RepositoryManager
	clock        Clock
	logger       Logger
	activitySink ActivitySink
}

func (s *Auther) ConfirmVerificationHandler() *ConfirmVerificationHandler {
	return &ConfirmVerificationHandler{
		repo:         s.repo,
		clock:        s.clock,
		logger:       s.logger,
		activitySink: s.activitySink,
	}
}

func (h *ConfirmVerificationHandler) Execute(ctx context.Context, event ConfirmVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmVerificationHandler) execute(ctx context.Context, event ConfirmVerificationMessage) error {
	if event.User == nil {
		return ErrUserNotFound
	}

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	expired, err := consumeShortLivedToken(ctx, h.repo, h.clock, event.User, event.Token, TokenTypeVerification,
		func(ctx context.Context, tx bun.Tx) error {
			return h.repo.Users().MarkEmailVerifiedTx(ctx, tx, event.User.ID)
		})
	if err != nil {
		return err
	}

	if expired {
		return ErrShortTokenExpired
	}

	RecordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventVerify,
		UserID:    event.User.ID.String(),
	})

	return nil
}
