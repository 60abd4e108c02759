package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RecreateTokenMessage struct {
	User      *User     `json:"-"`
	TokenType TokenType `json:"type"`
	// AllowFirst issues a token even if none is outstanding. Only the
	// verification request sets it.
	AllowFirst bool `json:"-"`
}

func (e RecreateTokenMessage) Type() string { return "token.recreate" }

func (e RecreateTokenMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.TokenType,
			validation.Required,
			validation.In(TokenTypeActivation, TokenTypeVerification),
		),
	)
}

type RecreateTokenHandler struct {
	repo     RepositoryManager
	notifier *Notifier
	clock    Clock
	logger   Logger
}

// RecreateTokenHandler builds the resend command
func (s *Auther) RecreateTokenHandler() *RecreateTokenHandler {
	return &RecreateTokenHandler{
		repo:     s.repo,
		notifier: s.notifier,
		clock:    s.clock,
		logger:   s.logger,
	}
}

func (h *RecreateTokenHandler) Execute(ctx context.Context, event RecreateTokenMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during token recreation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RecreateTokenHandler) execute(ctx context.Context, event RecreateTokenMessage) error {
	if event.User == nil {
		return ErrUserNotFound
	}

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	if event.TokenType == TokenTypeActivation && event.User.Activated {
		return ErrAlreadyActivated
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	window, _ := TokenWindowFor(event.TokenType)

	var token *ShortLivedToken

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.repo.Tokens().FindTx(ctx, tx, event.User.ID, event.TokenType)
		switch {
		case err == nil:
			if IsWithinThresholdPeriod(normalizeClock(h.clock).Now(), existing.CreatedAt, window.Min) {
				return ErrRecreateTooSoon
			}
		case IsNotFound(err):
			if !event.AllowFirst {
				return ErrNoTokenToRecreate
			}
		default:
			return err
		}

		token, err = h.repo.Tokens().IssueTx(ctx, tx, event.User.ID, event.TokenType)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to recreate token")
	}

	return sendTokenEmail(ctx, h.notifier, h.logger, event.User, token)
}
