package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/infra/metrics"
	"mpesa-subscription-billing/internal/usecase"
)

// StalePaymentWorker cancels pending payments whose callback never arrived.
// It only marks them canceled locally; it never re-queries the gateway, so a
// genuinely late callback still finds a terminal record and is acknowledged
// without mutation.
type StalePaymentWorker struct {
	interval  time.Duration
	age       time.Duration
	paymentUC usecase.PaymentUseCase
	log       *zerolog.Logger
}

func NewStalePaymentWorker(interval, age time.Duration, paymentUC usecase.PaymentUseCase, logger *zerolog.Logger) *StalePaymentWorker {
	compLog := logger.With().Str("component", "StalePaymentWorker").Logger()
	return &StalePaymentWorker{
		interval:  interval,
		age:       age,
		paymentUC: paymentUC,
		log:       &compLog,
	}
}

func (w *StalePaymentWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("age", w.age).Msg("Starting stale payment worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale payment worker")
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-w.age)
			_, err := w.paymentUC.CancelStale(ctx, cutoff)
			metrics.IncJobRun("stale_payment_cancel", err)
			if err != nil {
				w.log.Error().Err(err).Msg("stale payment sweep failed")
			}
		}
	}
}
