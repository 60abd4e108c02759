package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Tokens() ShortLivedTokens
	Revocations() Revocations
	PasskeyChallenges() PasskeyChallenges
	PasskeyCredentials() PasskeyCredentials
}

type mngr struct {
	db          *bun.DB
	users       Users
	tokens      ShortLivedTokens
	revocations Revocations
	challenges  PasskeyChallenges
	credentials PasskeyCredentials
}

// NewRepositoryManager wires every store to db. All stores share clock.
func NewRepositoryManager(db *bun.DB, clock Clock) RepositoryManager {
	clock = normalizeClock(clock)
	return &mngr{
		db:          db,
		users:       NewUsersRepository(db, clock),
		tokens:      NewShortLivedTokensRepository(db, clock),
		revocations: NewRevocationsRepository(db, clock),
		challenges:  NewPasskeyChallengesRepository(db, clock),
		credentials: NewPasskeyCredentialsRepository(db, clock),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	if m.revocations == nil {
		return errors.New("repository revocations should be initialized")
	}

	if m.challenges == nil || m.credentials == nil {
		return errors.New("repository passkeys should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Tokens() ShortLivedTokens {
	return m.tokens
}

func (m mngr) Revocations() Revocations {
	return m.revocations
}

func (m mngr) PasskeyChallenges() PasskeyChallenges {
	return m.challenges
}

func (m mngr) PasskeyCredentials() PasskeyCredentials {
	return m.credentials
}

// IsNotFound reports whether err means a missing row, whichever layer
// produced it.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) ||
		repository.IsRecordNotFound(err) ||
		goerrors.IsNotFound(err)
}
