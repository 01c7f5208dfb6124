//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/usecase"
)

func newSubscriptionUCDeps() (*MockSubscriptionRepo, *MockPlanRepo, usecase.SubscriptionUseCase) {
	subs := NewMockSubscriptionRepo()
	plans := NewMockPlanRepo()
	uc := usecase.NewSubscriptionUseCase(subs, plans, NewMockTxManager(), newTestLogger())
	return subs, plans, uc
}

func seedSubscription(t *testing.T, subs *MockSubscriptionRepo, plans *MockPlanRepo, cycle model.BillingCycle) *model.Subscription {
	t.Helper()
	plan, err := model.NewPlan("plan-1", "Premium", "premium", "", 500, cycle, nil)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	sub, err := model.NewSubscription("sub-1", "user-1", plan)
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	if err := subs.Save(context.Background(), nil, sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return sub
}

func TestSubscriptionUseCase_Cancel(t *testing.T) {
	ctx := context.Background()
	subs, plans, uc := newSubscriptionUCDeps()
	seedSubscription(t, subs, plans, model.BillingCycleMonthly)

	got, err := uc.Cancel(ctx, "sub-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != model.SubscriptionStatusCanceled {
		t.Errorf("status = %q, want canceled", got.Status)
	}
	if got.AutoRenew {
		t.Error("auto_renew still true after cancel")
	}
	if got.CanceledAt == nil {
		t.Error("canceled_at not set")
	}

	// Second cancel is rejected; canceled is terminal.
	if _, err := uc.Cancel(ctx, "sub-1"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("second cancel err = %v, want ErrInvalidArgument", err)
	}
}

func TestSubscriptionUseCase_Renew(t *testing.T) {
	ctx := context.Background()
	subs, plans, uc := newSubscriptionUCDeps()
	sub := seedSubscription(t, subs, plans, model.BillingCycleMonthly)

	got, err := uc.Renew(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if got.Status != model.SubscriptionStatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	wantEnd := sub.EndDate.AddDate(0, 0, 30)
	if !got.EndDate.Equal(wantEnd) {
		t.Errorf("end date = %v, want %v", got.EndDate, wantEnd)
	}
	if !got.StartDate.Equal(sub.EndDate) {
		t.Errorf("start date = %v, want previous end %v", got.StartDate, sub.EndDate)
	}
}

func TestSubscriptionUseCase_RenewCanceledRejected(t *testing.T) {
	ctx := context.Background()
	subs, plans, uc := newSubscriptionUCDeps()
	seedSubscription(t, subs, plans, model.BillingCycleAnnually)

	if _, err := uc.Cancel(ctx, "sub-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := uc.Renew(ctx, "sub-1"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("renew after cancel err = %v, want ErrInvalidArgument", err)
	}
}

func TestSubscriptionUseCase_FinishExpired(t *testing.T) {
	ctx := context.Background()
	subs, plans, uc := newSubscriptionUCDeps()
	sub := seedSubscription(t, subs, plans, model.BillingCycleMonthly)

	// Force the window into the past.
	sub.StartDate = time.Now().AddDate(0, 0, -40)
	sub.EndDate = time.Now().AddDate(0, 0, -10)
	sub.Status = model.SubscriptionStatusActive
	subs.Save(ctx, nil, sub)

	n, err := uc.FinishExpired(ctx)
	if err != nil {
		t.Fatalf("FinishExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	got, _ := subs.FindByID(ctx, nil, sub.ID)
	if got.Status != model.SubscriptionStatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}

	// Nothing left to expire on the second run.
	if n, _ := uc.FinishExpired(ctx); n != 0 {
		t.Errorf("second run expired = %d, want 0", n)
	}
}
