package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	Availability(ctx context.Context, username, email string) (*Availability, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPermission(ctx context.Context, id uuid.UUID, permission Permission) error
}

// Availability reports which identifiers are already taken
type Availability struct {
	UsernameTaken bool `json:"username_taken"`
	EmailTaken    bool `json:"email_taken"`
}

type users struct {
	repository.Repository[*User]
	db    *bun.DB
	clock Clock
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB, clock Clock) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		clock:      normalizeClock(clock),
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) Availability(ctx context.Context, username, email string) (*Availability, error) {
	out := &Availability{}

	if username != "" {
		taken, err := a.db.NewSelect().
			Model((*User)(nil)).
			Where("?TableAlias.username = ?", username).
			Exists(ctx)
		if err != nil {
			return nil, err
		}
		out.UsernameTaken = taken
	}

	if email != "" {
		taken, err := a.db.NewSelect().
			Model((*User)(nil)).
			Where("?TableAlias.email = ?", email).
			Exists(ctx)
		if err != nil {
			return nil, err
		}
		out.EmailTaken = taken
	}

	return out, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx inserts the user. The unique constraints are the source of
// truth, a violation maps to the same error as the pre-check.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user, storeTime(a.clock))

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		if conflict := userConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, err
	}

	return user, nil
}

func (a *users) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("activated = ?", true).
		Set("updated_at = ?", storeTime(a.clock)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id.String()})
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", storeTime(a.clock)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id.String()})
}

func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := storeTime(a.clock)
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("email_verified_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id.String()})
}

func (a *users) SetPermission(ctx context.Context, id uuid.UUID, permission Permission) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("permission = ?", permission).
		Set("updated_at = ?", storeTime(a.clock)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id.String()})
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

// userConflict maps unique violations on users to the registration errors.
// Postgres reports the constraint name, sqlite only the column.
func userConflict(err error) *goerrors.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "uq_users_username":
			return ErrUsernameTaken
		case "uq_users_email":
			return ErrEmailTaken
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"), strings.Contains(msg, "uq_users_username"):
		return ErrUsernameTaken
	case strings.Contains(msg, "users.email"), strings.Contains(msg, "uq_users_email"):
		return ErrEmailTaken
	}

	return nil
}
