package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	User            *User  `json:"-"`
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (e ChangePasswordMessage) Type() string { return "user.password.change" }

func (e ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.OldPassword, validation.Required),
		validation.Field(&e.Password, append(append([]validation.Rule{}, PasswordRules...),
			validation.By(func(value any) error {
				if s, _ := value.(string); s != "" && s == e.OldPassword {
					return errors.New("must differ from the current password")
				}
				return nil
			}),
		)...),
		validation.Field(&e.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
	)
}

// ChangePasswordHandler replaces the password of a user holding a fresh
// access token. Issued tokens stay valid.
type ChangePasswordHandler struct {
	repo         RepositoryManager
	hasher       PasswordHasher
	logger       Logger
	activitySink ActivitySink
}

func (s *Auther) ChangePasswordHandler() *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:         s.repo,
		hasher:       s.hasher,
		logger:       s.logger,
		activitySink: s.activitySink,
	}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if event.User == nil {
		return ErrUserNotFound
	}

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	if !h.hasher.Verify(event.OldPassword, event.User.PasswordHash) {
		return ErrMismatchedPassword
	}

	hash, err := h.hasher.Hash(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().UpdatePasswordTx(ctx, tx, event.User.ID, hash)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	event.User.PasswordHash = hash

	RecordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		UserID:    event.User.ID.String(),
	})

	return nil
}
