package repository

import (
	"context"
	"time"

	"mpesa-subscription-billing/internal/domain/model"
)

// PaymentRequestRepository is the port for STK push payment persistence.
// Status transitions are compare-and-swap: the Mark* methods apply only when
// the row is still pending and report whether they did.
type PaymentRequestRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRequest, error)
	FindByCheckoutRequestID(ctx context.Context, tx Tx, checkoutID string) (*model.PaymentRequest, error)
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.PaymentRequest, error)

	MarkCompletedIfPending(ctx context.Context, tx Tx, id, receipt string, txDate time.Time, metadata map[string]any) (bool, error)
	MarkFailedIfPending(ctx context.Context, tx Tx, id string, resultCode int, resultDesc string) (bool, error)
	// CancelPendingOlderThan sweeps pushes whose callback never arrived.
	CancelPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time) (int, error)

	// SumCompletedByPeriod totals completed amounts since the start of the
	// current period ("week", "month", "year").
	SumCompletedByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
