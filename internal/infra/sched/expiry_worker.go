package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/infra/metrics"
	"mpesa-subscription-billing/internal/usecase"
)

// ExpiryWorker periodically flips elapsed subscriptions to expired.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	compLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		log:      &compLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	// Run once on startup, then on every tick
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *ExpiryWorker) runCheck(ctx context.Context) {
	_, err := w.subUC.FinishExpired(ctx)
	metrics.IncJobRun("subscription_expiry", err)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry check failed")
	}
}
