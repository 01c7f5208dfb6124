package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
	"mpesa-subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase implements subscription lifecycle operations.
type SubscriptionUseCase interface {
	Get(ctx context.Context, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
	// Cancel marks the subscription canceled; it stays usable until end_date.
	Cancel(ctx context.Context, id string) (*model.Subscription, error)
	// Renew extends the subscription by one billing cycle of its plan.
	Renew(ctx context.Context, id string) (*model.Subscription, error)
	// FinishExpired flips elapsed active/trialing subscriptions to expired
	// and returns how many rows were touched.
	FinishExpired(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

type subscriptionUC struct {
	subs  repository.SubscriptionRepository
	plans repository.PlanRepository
	tm    repository.TransactionManager

	log *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, plans repository.PlanRepository, tm repository.TransactionManager, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{subs: subs, plans: plans, tm: tm, log: logger}
}

func (u *subscriptionUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	return u.subs.FindByID(ctx, repository.NoTX, id)
}

func (u *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return u.subs.ListByUser(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) Cancel(ctx context.Context, id string) (*model.Subscription, error) {
	var sub *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := u.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.Cancel(); err != nil {
			return err
		}
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("subscription_id", sub.ID).Msg("subscription canceled")
	return sub, nil
}

func (u *subscriptionUC) Renew(ctx context.Context, id string) (*model.Subscription, error) {
	var sub *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := u.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		plan, err := u.plans.FindByID(ctx, tx, s.PlanID)
		if err != nil {
			return err
		}
		if err := s.Renew(plan); err != nil {
			return err
		}
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("subscription_id", sub.ID).Time("end_date", sub.EndDate).Msg("subscription renewed")
	return sub, nil
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	n, err := u.subs.ExpireElapsed(ctx, repository.NoTX, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
		u.log.Info().Int("count", n).Msg("expired elapsed subscriptions")
	}
	return n, nil
}

func (u *subscriptionUC) CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return u.subs.CountByStatus(ctx, repository.NoTX)
}
