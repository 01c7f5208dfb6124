package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

// PlanUseCase manages the subscription plan catalog.
type PlanUseCase interface {
	Create(ctx context.Context, name, description string, price int64, cycle model.BillingCycle, features map[string]any) (*model.Plan, error)
	Update(ctx context.Context, plan *model.Plan) error
	Get(ctx context.Context, id string) (*model.Plan, error)
	GetBySlug(ctx context.Context, slug string) (*model.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Plan, error)
	Delete(ctx context.Context, id string) error
}

type planUC struct {
	repo repository.PlanRepository
	log  *zerolog.Logger
}

func NewPlanUseCase(repo repository.PlanRepository, logger *zerolog.Logger) *planUC {
	return &planUC{repo: repo, log: logger}
}

func (u *planUC) Create(ctx context.Context, name, description string, price int64, cycle model.BillingCycle, features map[string]any) (*model.Plan, error) {
	plan, err := model.NewPlan(uuid.NewString(), name, model.Slugify(name), description, price, cycle, features)
	if err != nil {
		return nil, err
	}
	if err := u.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, err
	}
	u.log.Info().Str("plan_id", plan.ID).Str("slug", plan.Slug).Msg("plan created")
	return plan, nil
}

func (u *planUC) Update(ctx context.Context, plan *model.Plan) error {
	return u.repo.Save(ctx, repository.NoTX, plan)
}

func (u *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	return u.repo.FindByID(ctx, repository.NoTX, id)
}

func (u *planUC) GetBySlug(ctx context.Context, slug string) (*model.Plan, error) {
	return u.repo.FindBySlug(ctx, repository.NoTX, slug)
}

func (u *planUC) List(ctx context.Context, activeOnly bool) ([]*model.Plan, error) {
	return u.repo.ListAll(ctx, repository.NoTX, activeOnly)
}

func (u *planUC) Delete(ctx context.Context, id string) error {
	return u.repo.Delete(ctx, repository.NoTX, id)
}
