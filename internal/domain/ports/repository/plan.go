package repository

import (
	"context"

	"mpesa-subscription-billing/internal/domain/model"
)

// PlanRepository is the port for catalog persistence.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Plan, error)
	// ListAll orders by display_order then price; activeOnly filters the
	// public catalog view.
	ListAll(ctx context.Context, tx Tx, activeOnly bool) ([]*model.Plan, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
