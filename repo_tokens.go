package auth

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeFilter narrows a consume to a user and/or token type
type ConsumeFilter struct {
	UserID    uuid.UUID
	TokenType TokenType
}

// ShortLivedTokens stores single-use activation and verification tokens
type ShortLivedTokens interface {
	Issue(ctx context.Context, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error)
	Consume(ctx context.Context, token string, filter ConsumeFilter) (*ShortLivedToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, token string, filter ConsumeFilter) (*ShortLivedToken, error)
	Find(ctx context.Context, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error)
	FindTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error)
}

type shortLivedTokens struct {
	db    *bun.DB
	clock Clock
}

func NewShortLivedTokensRepository(db *bun.DB, clock Clock) ShortLivedTokens {
	return &shortLivedTokens{db: db, clock: normalizeClock(clock)}
}

func (r *shortLivedTokens) Issue(ctx context.Context, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error) {
	var token *ShortLivedToken
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		token, err = r.IssueTx(ctx, tx, userID, tokenType)
		return err
	})
	return token, err
}

// IssueTx drops any outstanding token for (user, type) before inserting the
// replacement, so at most one is live.
func (r *shortLivedTokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error) {
	_, err := tx.NewDelete().
		Model((*ShortLivedToken)(nil)).
		Where("user_id = ?", userID).
		Where("token_type = ?", tokenType).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	token := &ShortLivedToken{
		Token:     uuid.New(),
		TokenType: tokenType,
		UserID:    userID,
		CreatedAt: storeTime(r.clock),
	}

	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, err
	}

	return token, nil
}

func (r *shortLivedTokens) Consume(ctx context.Context, token string, filter ConsumeFilter) (*ShortLivedToken, error) {
	var record *ShortLivedToken
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = r.ConsumeTx(ctx, tx, token, filter)
		return err
	})
	return record, err
}

// ConsumeTx deletes the token and returns it. Only the caller whose delete
// removed the row wins, a concurrent consume gets ErrTokenNotFound.
func (r *shortLivedTokens) ConsumeTx(ctx context.Context, tx bun.IDB, token string, filter ConsumeFilter) (*ShortLivedToken, error) {
	if !IsUUIDv4(token) {
		return nil, ErrTokenNotFound
	}
	id := uuid.MustParse(token)

	record := &ShortLivedToken{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", id)

	if filter.UserID != uuid.Nil {
		q = q.Where("?TableAlias.user_id = ?", filter.UserID)
	}

	if filter.TokenType != "" {
		q = q.Where("?TableAlias.token_type = ?", filter.TokenType)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if IsNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	res, err := tx.NewDelete().
		Model((*ShortLivedToken)(nil)).
		Where("token = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, ErrTokenNotFound
	}

	return record, nil
}

func (r *shortLivedTokens) Find(ctx context.Context, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error) {
	return r.FindTx(ctx, r.db, userID, tokenType)
}

func (r *shortLivedTokens) FindTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType) (*ShortLivedToken, error) {
	record := &ShortLivedToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.token_type = ?", tokenType).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id":    userID.String(),
					"token_type": string(tokenType),
				})
		}
		return nil, err
	}
	return record, nil
}

func expectAffected(res sql.Result, metadata map[string]any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().WithMetadata(metadata)
	}
	return nil
}
