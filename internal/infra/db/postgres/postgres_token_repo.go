package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
)

var _ repository.AccessTokenRepository = (*tokenRepo)(nil)

// tokenRepo stores the append-only gateway token log. Rows are never updated
// or deleted; expired tokens simply stop matching the validity query.
type tokenRepo struct{ pool *pgxpool.Pool }

func NewTokenRepo(pool *pgxpool.Pool) *tokenRepo {
	return &tokenRepo{pool: pool}
}

func (r *tokenRepo) Save(ctx context.Context, tx repository.Tx, t *model.AccessToken) error {
	const q = `
INSERT INTO mpesa_access_tokens (id, access_token, expires_at, created_at)
VALUES ($1,$2,$3,$4);`

	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.AccessToken, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *tokenRepo) FindNewestValid(ctx context.Context, tx repository.Tx, at time.Time) (*model.AccessToken, error) {
	const q = `
SELECT id, access_token, expires_at, created_at
  FROM mpesa_access_tokens
 WHERE expires_at > $1
 ORDER BY created_at DESC
 LIMIT 1;`

	row, err := pickRow(ctx, r.pool, tx, q, at)
	if err != nil {
		return nil, err
	}

	t := &model.AccessToken{}
	if err := row.Scan(&t.ID, &t.AccessToken, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}
