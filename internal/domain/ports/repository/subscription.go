package repository

import (
	"context"
	"time"

	"mpesa-subscription-billing/internal/domain/model"
)

// SubscriptionRepository is the port for subscription persistence.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus) error
	// ExpireElapsed moves active/trialing rows past their end date to
	// expired; returns how many rows it touched.
	ExpireElapsed(ctx context.Context, tx Tx, at time.Time) (int, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
