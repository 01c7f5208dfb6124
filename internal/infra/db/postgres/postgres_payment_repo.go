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

var _ repository.PaymentRequestRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, subscription_id, amount, phone_number, checkout_request_id, merchant_request_id, receipt_number, status, result_code, result_description, transaction_date, metadata, description, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.PaymentRequest, error) {
	p := &model.PaymentRequest{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.SubscriptionID, &p.Amount, &p.PhoneNumber,
		&p.CheckoutRequestID, &p.MerchantRequestID, &p.ReceiptNumber,
		&p.Status, &p.ResultCode, &p.ResultDescription, &p.TransactionDate,
		&p.Metadata, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	const q = `
INSERT INTO mpesa_payments (
  id, user_id, subscription_id, amount, phone_number, checkout_request_id, merchant_request_id,
  receipt_number, status, result_code, result_description, transaction_date, metadata, description,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  subscription_id=$3, receipt_number=$8, status=$9, result_code=$10, result_description=$11,
  transaction_date=$12, metadata=$13, description=$14, updated_at=$16;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.SubscriptionID, p.Amount, p.PhoneNumber,
		p.CheckoutRequestID, p.MerchantRequestID, p.ReceiptNumber,
		p.Status, p.ResultCode, p.ResultDescription, p.TransactionDate,
		p.Metadata, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	q := `SELECT ` + paymentColumns + ` FROM mpesa_payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByCheckoutRequestID(ctx context.Context, tx repository.Tx, checkoutID string) (*model.PaymentRequest, error) {
	q := `SELECT ` + paymentColumns + ` FROM mpesa_payments WHERE checkout_request_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, checkoutID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.PaymentRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + paymentColumns + ` FROM mpesa_payments WHERE user_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkCompletedIfPending atomically completes a payment; the WHERE clause is
// the idempotency guard against duplicate callback delivery.
func (r *paymentRepo) MarkCompletedIfPending(ctx context.Context, tx repository.Tx, id, receipt string, txDate time.Time, metadata map[string]any) (bool, error) {
	const q = `
UPDATE mpesa_payments
   SET status = 'completed',
       result_code = 0,
       receipt_number = $2,
       transaction_date = $3,
       metadata = $4,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, receipt, txDate, metadata)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id string, resultCode int, resultDesc string) (bool, error) {
	const q = `
UPDATE mpesa_payments
   SET status = 'failed',
       result_code = $2,
       result_description = $3,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, resultCode, resultDesc)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) CancelPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time) (int, error) {
	const q = `
UPDATE mpesa_payments
   SET status = 'canceled',
       result_description = 'no callback received',
       updated_at = NOW()
 WHERE status = 'pending'
   AND created_at < $1;`

	cmd, err := execSQL(ctx, r.pool, tx, q, olderThan)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *paymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM mpesa_payments WHERE status='completed' AND transaction_date >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}

	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
