package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	User  *User  `json:"-"`
	Token string `json:"token"`
}

func (e ActivateAccountMessage) Type() string { return "user.activate" }

func (e ActivateAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
	)
}

type ActivateAccountHandler struct {
	repo         RepositoryManager
	clock        Clock
	logger       Logger
	activitySink ActivitySink
}

// ActivateAccountHandler builds the activation command
func (s *Auther) ActivateAccountHandler() *ActivateAccountHandler {
	return &ActivateAccountHandler{
		repo:         s.repo,
		clock:        s.clock,
		logger:       s.logger,
		activitySink: s.activitySink,
	}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	if event.User == nil {
		return ErrUserNotFound
	}

	if event.User.Activated {
		return ErrAlreadyActivated
	}

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	expired, err := consumeShortLivedToken(ctx, h.repo, h.clock, event.User, event.Token, TokenTypeActivation,
		func(ctx context.Context, tx bun.Tx) error {
			return h.repo.Users().ActivateTx(ctx, tx, event.User.ID)
		})
	if err != nil {
		return err
	}

	if expired {
		return ErrShortTokenExpired
	}

	event.User.Activated = true

	RecordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventActivate,
		UserID:    event.User.ID.String(),
	})

	return nil
}

// consumeShortLivedToken consumes token and runs apply in the same
// transaction. A token past its window is still consumed, apply is skipped
// and expired is true.
func consumeShortLivedToken(
	ctx context.Context,
	repo RepositoryManager,
	clock Clock,
	user *User,
	token string,
	tokenType TokenType,
	apply func(ctx context.Context, tx bun.Tx) error,
) (expired bool, err error) {
	window, _ := TokenWindowFor(tokenType)

	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := repo.Tokens().ConsumeTx(ctx, tx, token, ConsumeFilter{
			UserID:    user.ID,
			TokenType: tokenType,
		})
		if err != nil {
			return err
		}

		if IsOutsideThresholdPeriod(normalizeClock(clock).Now(), record.CreatedAt, window.Max) {
			expired = true
			return nil
		}

		return apply(ctx, tx)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return false, richErr
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume token")
	}

	return expired, nil
}
