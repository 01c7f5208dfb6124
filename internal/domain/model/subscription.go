package model

import (
	"time"

	"github.com/google/uuid"

	"mpesa-subscription-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// Subscription is a user's entitlement window for one plan.
type Subscription struct {
	ID         string
	UserID     string
	PlanID     string
	Status     SubscriptionStatus
	StartDate  time.Time
	EndDate    time.Time // always StartDate + plan duration unless renewed
	AutoRenew  bool
	CanceledAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSubscription creates a trialing subscription for a plan. It only becomes
// active once the callback processor confirms payment.
func NewSubscription(id, userID string, plan *Plan) (*Subscription, error) {
	if userID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Subscription{
		ID:        id,
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    SubscriptionStatusTrialing,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, plan.DurationDays()),
		AutoRenew: true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive reports whether the entitlement is currently usable.
func (s *Subscription) IsActive(at time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndDate.After(at)
}

func (s *Subscription) IsExpired(at time.Time) bool {
	return !s.EndDate.After(at)
}

// Cancel is terminal and switches auto-renew off.
func (s *Subscription) Cancel() error {
	if s.Status == SubscriptionStatusCanceled {
		return domain.ErrInvalidArgument
	}
	now := time.Now()
	s.Status = SubscriptionStatusCanceled
	s.CanceledAt = &now
	s.AutoRenew = false
	s.UpdatedAt = now
	return nil
}

// Renew extends the window by one billing cycle from the current end and
// returns the subscription to active.
func (s *Subscription) Renew(plan *Plan) error {
	if plan.IsZero() || plan.ID != s.PlanID {
		return domain.ErrInvalidArgument
	}
	if s.Status == SubscriptionStatusCanceled {
		return domain.ErrInvalidArgument
	}
	s.StartDate = s.EndDate
	s.EndDate = s.StartDate.AddDate(0, 0, plan.DurationDays())
	s.Status = SubscriptionStatusActive
	s.UpdatedAt = time.Now()
	return nil
}
