package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, slug, description, price, billing_cycle, features, is_active, is_popular, display_order, created_at, updated_at`

func scanPlan(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.BillingCycle,
		&p.Features, &p.IsActive, &p.IsPopular, &p.DisplayOrder,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const q = `
INSERT INTO subscription_plans (
  id, name, slug, description, price, billing_cycle, features, is_active, is_popular, display_order, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  name=$2, slug=$3, description=$4, price=$5, billing_cycle=$6, features=$7,
  is_active=$8, is_popular=$9, display_order=$10, updated_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.Name, plan.Slug, plan.Description, plan.Price, plan.BillingCycle,
		plan.Features, plan.IsActive, plan.IsPopular, plan.DisplayOrder,
		plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE slug=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, slug)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY display_order, price;`

	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete soft-deletes when subscriptions still reference the plan, otherwise
// removes the row.
func (r *planRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const refQ = `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE plan_id=$1);`
	row, err := pickRow(ctx, r.pool, tx, refQ, id)
	if err != nil {
		return err
	}
	var referenced bool
	if err := row.Scan(&referenced); err != nil {
		return domain.ErrReadDatabaseRow
	}

	q := `DELETE FROM subscription_plans WHERE id=$1;`
	if referenced {
		q = `UPDATE subscription_plans SET is_active=FALSE, updated_at=NOW() WHERE id=$1;`
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
