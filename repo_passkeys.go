package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasskeyChallenges stores pending WebAuthn ceremonies
type PasskeyChallenges interface {
	Create(ctx context.Context, challenge *PasskeyChallenge) error
	Consume(ctx context.Context, id uuid.UUID, challengeType ChallengeType, userID uuid.UUID) (*PasskeyChallenge, error)
	Sweep(ctx context.Context, ttl time.Duration) (int64, error)
}

// PasskeyCredentials stores registered WebAuthn credentials
type PasskeyCredentials interface {
	Create(ctx context.Context, credential *PasskeyCredential) error
	GetByID(ctx context.Context, id string) (*PasskeyCredential, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*PasskeyCredential, error)
	AdvanceCounter(ctx context.Context, id string, counter int64) (bool, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

type passkeyChallenges struct {
	db    *bun.DB
	clock Clock
}

func NewPasskeyChallengesRepository(db *bun.DB, clock Clock) PasskeyChallenges {
	return &passkeyChallenges{db: db, clock: normalizeClock(clock)}
}

func (r *passkeyChallenges) Create(ctx context.Context, challenge *PasskeyChallenge) error {
	if challenge.ID == uuid.Nil {
		challenge.ID = uuid.New()
	}
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = storeTime(r.clock)
	}
	_, err := r.db.NewInsert().Model(challenge).Exec(ctx)
	return err
}

// Consume removes the challenge and returns it. A uuid.Nil userID skips
// the owner filter.
func (r *passkeyChallenges) Consume(ctx context.Context, id uuid.UUID, challengeType ChallengeType, userID uuid.UUID) (*PasskeyChallenge, error) {
	record := &PasskeyChallenge{}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Where("?TableAlias.challenge_type = ?", challengeType)

		if userID != uuid.Nil {
			q = q.Where("?TableAlias.user_id = ?", userID)
		}

		if err := q.Limit(1).Scan(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*PasskeyChallenge)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}

		return expectAffected(res, map[string]any{"id": id.String()})
	})

	if err != nil {
		if IsNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id":   id.String(),
					"type": string(challengeType),
				})
		}
		return nil, err
	}

	return record, nil
}

// Sweep removes challenges older than ttl
func (r *passkeyChallenges) Sweep(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*PasskeyChallenge)(nil)).
		Where("created_at <= ?", storeTime(r.clock).Add(-ttl)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type passkeyCredentials struct {
	db    *bun.DB
	clock Clock
}

func NewPasskeyCredentialsRepository(db *bun.DB, clock Clock) PasskeyCredentials {
	return &passkeyCredentials{db: db, clock: normalizeClock(clock)}
}

func (r *passkeyCredentials) Create(ctx context.Context, credential *PasskeyCredential) error {
	now := storeTime(r.clock)
	credential.CreatedAt = now
	credential.UpdatedAt = now
	if credential.Transports == nil {
		credential.Transports = []string{}
	}
	_, err := r.db.NewInsert().Model(credential).Exec(ctx)
	return err
}

func (r *passkeyCredentials) GetByID(ctx context.Context, id string) (*PasskeyCredential, error) {
	record := &PasskeyCredential{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id})
		}
		return nil, err
	}
	return record, nil
}

func (r *passkeyCredentials) ListByUser(ctx context.Context, userID uuid.UUID) ([]*PasskeyCredential, error) {
	records := []*PasskeyCredential{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	return records, nil
}

// AdvanceCounter stores counter only if it is strictly greater than the
// stored value. Returns false when the row was not updated.
func (r *passkeyCredentials) AdvanceCounter(ctx context.Context, id string, counter int64) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*PasskeyCredential)(nil)).
		Set("counter = ?", counter).
		Set("updated_at = ?", storeTime(r.clock)).
		Where("id = ?", id).
		Where("counter < ?", counter).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *passkeyCredentials) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	res, err := r.db.NewDelete().
		Model((*PasskeyCredential)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id})
}
