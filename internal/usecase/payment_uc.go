package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/config"
	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/adapter"
	"mpesa-subscription-billing/internal/domain/ports/repository"
	"mpesa-subscription-billing/internal/infra/logging"
	"mpesa-subscription-billing/internal/infra/metrics"
	"mpesa-subscription-billing/internal/infra/redis"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase drives the STK push lifecycle: initiation against the
// gateway and reconciliation of the asynchronous result callback.
type PaymentUseCase interface {
	// Initiate sends an STK push to the given phone and records a pending
	// PaymentRequest. When planID is set, the plan's price overrides the
	// client amount and a fresh trial subscription is linked; otherwise the
	// push is an ad-hoc charge of the given amount.
	Initiate(ctx context.Context, userID, planID, phone string, amount int64, accountRef, description string) (*model.PaymentRequest, error)
	// ProcessCallback reconciles a gateway result notification. It never
	// returns an error; the boolean is the acknowledgment sent back to the
	// gateway (false asks the gateway to redeliver).
	ProcessCallback(ctx context.Context, cb *model.STKCallback) bool
	// Get returns a payment by ID.
	Get(ctx context.Context, id string) (*model.PaymentRequest, error)
	// ListByUser returns a page of the user's payments, newest first.
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.PaymentRequest, error)
	// CancelStale cancels pending payments older than the cutoff and
	// returns how many were touched.
	CancelStale(ctx context.Context, olderThan time.Time) (int, error)
	// SumByPeriod totals completed payment amounts for "week"|"month"|"year".
	SumByPeriod(ctx context.Context, period string) (int64, error)
}

type paymentUC struct {
	payments repository.PaymentRequestRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	tokens   TokenUseCase
	gateway  adapter.MpesaGateway
	tm       repository.TransactionManager
	limiter  *redis.RateLimiter
	rlCfg    config.RateLimitConfig

	log *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRequestRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	tokens TokenUseCase,
	gateway adapter.MpesaGateway,
	tm repository.TransactionManager,
	limiter *redis.RateLimiter,
	rlCfg config.RateLimitConfig,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments: payments,
		subs:     subs,
		plans:    plans,
		tokens:   tokens,
		gateway:  gateway,
		tm:       tm,
		limiter:  limiter,
		rlCfg:    rlCfg,
		log:      logger,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, userID, planID, phone string, amount int64, accountRef, description string) (*model.PaymentRequest, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()

	if err := model.ValidatePhoneNumber(phone); err != nil {
		return nil, err
	}

	if u.limiter != nil {
		allowed, err := u.limiter.Allow(ctx, redis.PhoneInitiateKey(phone), u.rlCfg.InitiatePerPhone, u.rlCfg.Window)
		if err != nil {
			// The limiter is advisory; a Redis outage must not block payments.
			u.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !allowed {
			return nil, fmt.Errorf("%w: too many initiations for this phone", domain.ErrRateLimited)
		}
	}

	var plan *model.Plan
	if planID != "" {
		var err error
		plan, err = u.plans.FindByID(ctx, repository.NoTX, planID)
		if err != nil {
			return nil, err
		}
		if !plan.IsActive {
			return nil, fmt.Errorf("%w: plan %s is not active", domain.ErrInvalidArgument, plan.Slug)
		}
		if plan.Price <= 0 {
			return nil, fmt.Errorf("%w: plan %s is free, nothing to charge", domain.ErrInvalidArgument, plan.Slug)
		}
		// The catalog price is authoritative over whatever the client sent.
		amount = plan.Price
		if accountRef == "" {
			accountRef = plan.Slug
		}
		if description == "" {
			description = fmt.Sprintf("%s plan subscription", plan.Name)
		}
	} else if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}
	if accountRef == "" {
		accountRef = userID
	}

	token, err := u.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	pushResp, err := u.gateway.STKPush(ctx, token, adapter.STKPushRequest{
		PhoneNumber:      phone,
		Amount:           amount,
		AccountReference: accountRef,
		Description:      description,
	})
	if err != nil {
		return nil, err
	}

	payment, err := model.NewPaymentRequest(userID, phone, amount, pushResp.CheckoutRequestID, pushResp.MerchantRequestID, description)
	if err != nil {
		return nil, err
	}

	// The push is accepted by the provider; record the subscription (when a
	// plan was selected) and the pending payment together so the callback
	// always finds both.
	var sub *model.Subscription
	if plan != nil {
		sub, err = model.NewSubscription(uuid.NewString(), userID, plan)
		if err != nil {
			return nil, err
		}
		payment.SubscriptionID = &sub.ID
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if sub != nil {
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
		}
		return u.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	ev := u.log.Info().
		Str("payment_id", payment.ID).
		Str("checkout_request_id", payment.CheckoutRequestID).
		Int64("amount", amount)
	if plan != nil {
		ev = ev.Str("plan", plan.Slug)
	}
	ev.Msg("payment initiated")
	return payment, nil
}

func (u *paymentUC) ProcessCallback(ctx context.Context, cb *model.STKCallback) bool {
	defer logging.TraceDuration(u.log, "PaymentUC.ProcessCallback")()
	log := u.log.With().Str("checkout_request_id", cb.CheckoutRequestID).Logger()

	payment, err := u.payments.FindByCheckoutRequestID(ctx, repository.NoTX, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A result for a push this system never sent, or a stray redelivery
			// long after cleanup. Nothing to mutate.
			log.Warn().Msg("callback for unknown checkout request")
			metrics.IncCallback("unknown")
			return false
		}
		log.Error().Err(err).Msg("callback lookup failed")
		metrics.IncCallback("error")
		return false
	}

	if payment.IsTerminal() {
		metrics.IncCallback("duplicate")
		return true
	}

	if cb.ResultCode != 0 {
		return u.recordFailure(ctx, &log, payment, cb)
	}
	return u.recordSuccess(ctx, &log, payment, cb)
}

func (u *paymentUC) recordSuccess(ctx context.Context, log *zerolog.Logger, payment *model.PaymentRequest, cb *model.STKCallback) bool {
	metadata := cb.FlattenMetadata()

	receipt, _ := metadata[model.MetadataKeyReceiptNumber].(string)
	if receipt == "" {
		// The provider occasionally omits the receipt on sandbox callbacks.
		// Persist the payment anyway; the metric keeps it observable.
		log.Warn().Msg("successful callback without receipt number")
		metrics.IncCallback("missing_receipt")
	}

	txDate, ok := model.ParseMpesaTimestamp(metadata[model.MetadataKeyTransactionDate])
	if !ok {
		txDate = time.Now()
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		swapped, err := u.payments.MarkCompletedIfPending(ctx, tx, payment.ID, receipt, txDate, metadata)
		if err != nil {
			return err
		}
		if !swapped {
			// A concurrent delivery won the race; its transaction already
			// activated the subscription.
			return nil
		}
		if payment.SubscriptionID != nil {
			if err := u.subs.UpdateStatus(ctx, tx, *payment.SubscriptionID, model.SubscriptionStatusActive); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			metrics.IncSubscriptionActivated()
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record successful payment")
		metrics.IncCallback("error")
		return false
	}

	metrics.IncCallback("completed")
	metrics.IncPayment(string(model.PaymentStatusCompleted))
	metrics.AddPaymentRevenue("KES", payment.Amount)
	log.Info().Str("receipt", receipt).Msg("payment completed")
	return true
}

func (u *paymentUC) recordFailure(ctx context.Context, log *zerolog.Logger, payment *model.PaymentRequest, cb *model.STKCallback) bool {
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		_, err := u.payments.MarkFailedIfPending(ctx, tx, payment.ID, cb.ResultCode, cb.ResultDesc)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record failed payment")
		metrics.IncCallback("error")
		return false
	}

	metrics.IncCallback("failed")
	metrics.IncPayment(string(model.PaymentStatusFailed))
	log.Info().Int("result_code", cb.ResultCode).Str("result_desc", cb.ResultDesc).Msg("payment failed")
	return false
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.PaymentRequest, error) {
	return u.payments.FindByID(ctx, repository.NoTX, id)
}

func (u *paymentUC) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.PaymentRequest, error) {
	return u.payments.ListByUser(ctx, repository.NoTX, userID, offset, limit)
}

func (u *paymentUC) CancelStale(ctx context.Context, olderThan time.Time) (int, error) {
	n, err := u.payments.CancelPendingOlderThan(ctx, repository.NoTX, olderThan)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		u.log.Info().Int("count", n).Time("older_than", olderThan).Msg("canceled stale pending payments")
	}
	return n, nil
}

func (u *paymentUC) SumByPeriod(ctx context.Context, period string) (int64, error) {
	return u.payments.SumCompletedByPeriod(ctx, repository.NoTX, period)
}
