package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Revocations is the blocklist of JWT ids
type Revocations interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time, userID uuid.UUID) error
	RevokeTx(ctx context.Context, tx bun.IDB, jti string, expiresAt time.Time, userID uuid.UUID) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Sweep(ctx context.Context) (int64, error)
}

type revocations struct {
	db    *bun.DB
	clock Clock
}

func NewRevocationsRepository(db *bun.DB, clock Clock) Revocations {
	return &revocations{db: db, clock: normalizeClock(clock)}
}

func (r *revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time, userID uuid.UUID) error {
	return r.RevokeTx(ctx, r.db, jti, expiresAt, userID)
}

// RevokeTx is idempotent, revoking the same jti twice keeps one entry.
func (r *revocations) RevokeTx(ctx context.Context, tx bun.IDB, jti string, expiresAt time.Time, userID uuid.UUID) error {
	entry := &RevokedToken{
		JTI:       jti,
		ExpiresAt: expiresAt.UTC().Truncate(time.Second),
		UserID:    userID,
		CreatedAt: storeTime(r.clock),
	}

	_, err := tx.NewInsert().
		Model(entry).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)
	return err
}

func (r *revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.db.NewSelect().
		Model((*RevokedToken)(nil)).
		Where("?TableAlias.jti = ?", jti).
		Exists(ctx)
}

// Sweep removes entries whose token has expired on its own
func (r *revocations) Sweep(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RevokedToken)(nil)).
		Where("expires_at <= ?", storeTime(r.clock)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
