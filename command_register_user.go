package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(*RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, UsernameRules...),
		validation.Field(&e.Email, EmailRules...),
		validation.Field(&e.Password, PasswordRules...),
	)
}

// RegisterUserResponse is reported even when the activation email fails,
// the account exists at that point.
type RegisterUserResponse struct {
	User  *User
	Token *ShortLivedToken
}

type RegisterUserHandler struct {
	repo         RepositoryManager
	hasher       PasswordHasher
	notifier     *Notifier
	logger       Logger
	activitySink ActivitySink
}

// RegisterUserHandler builds the registration command
func (s *Auther) RegisterUserHandler() *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:         s.repo,
		hasher:       s.hasher,
		notifier:     s.notifier,
		logger:       s.logger,
		activitySink: s.activitySink,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	event.Username = strings.TrimSpace(event.Username)
	event.Email = strings.TrimSpace(event.Email)

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	avail, err := h.repo.Users().Availability(ctx, event.Username, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check availability")
	}

	switch {
	case avail.UsernameTaken:
		return ErrUsernameTaken
	case avail.EmailTaken:
		return ErrEmailTaken
	}

	hash, err := h.hasher.Hash(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     event.Username,
		Email:        event.Email,
		PasswordHash: hash,
		Permission:   PermissionUser,
	}

	var token *ShortLivedToken

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return err
		}
		token, err = h.repo.Tokens().IssueTx(ctx, tx, user.ID, TokenTypeActivation)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	RecordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventRegister,
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user, Token: token})
	}

	return sendTokenEmail(ctx, h.notifier, h.logger, user, token)
}

// sendTokenEmail maps any delivery failure to ErrEmailUnreachable. The
// state change that issued the token is kept.
func sendTokenEmail(ctx context.Context, notifier *Notifier, logger Logger, user *User, token *ShortLivedToken) error {
	if notifier == nil {
		logger.Error("no notifier configured, %s email for %s dropped", token.TokenType, user.ID)
		return ErrEmailUnreachable
	}

	if err := notifier.SendToken(ctx, user, token); err != nil {
		logger.Error("failed to send %s email to %s: %v", token.TokenType, user.ID, err)
		return ErrEmailUnreachable
	}

	return nil
}
