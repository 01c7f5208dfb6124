package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
	"mpesa-subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (users int, byStatus map[model.SubscriptionStatus]int, err error)
	Revenue(ctx context.Context) (week int64, month int64, year int64, err error)
}

type statsUC struct {
	users    repository.UserRepository
	subs     repository.SubscriptionRepository
	payments repository.PaymentRequestRepository

	log *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, payments repository.PaymentRequestRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, subs: subs, payments: payments, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, map[model.SubscriptionStatus]int, error) {
	users, err := s.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, err
	}
	byStatus, err := s.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, err
	}
	metrics.SetSubscriptionsTotal(byStatus)
	return users, byStatus, nil
}

func (s *statsUC) Revenue(ctx context.Context) (int64, int64, int64, error) {
	w, err := s.payments.SumCompletedByPeriod(ctx, repository.NoTX, "week")
	if err != nil {
		return 0, 0, 0, err
	}
	m, err := s.payments.SumCompletedByPeriod(ctx, repository.NoTX, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := s.payments.SumCompletedByPeriod(ctx, repository.NoTX, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	return w, m, y, nil
}
