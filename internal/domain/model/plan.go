package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"mpesa-subscription-billing/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly  BillingCycle = "monthly"
	BillingCycleAnnually BillingCycle = "annually"
)

// Plan is a catalog entry: admin-owned, read-mostly, never mutated by the
// payment flow.
type Plan struct {
	ID           string
	Name         string
	Slug         string
	Description  string
	Price        int64 // whole KSh per billing cycle
	BillingCycle BillingCycle
	Features     map[string]any
	IsActive     bool
	IsPopular    bool
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// DurationDays returns the subscription window this plan buys.
func (p *Plan) DurationDays() int {
	if p.BillingCycle == BillingCycleAnnually {
		return 365
	}
	return 30
}

// NewPlan validates and constructs a plan. The slug is derived from the name
// when not given.
func NewPlan(id, name, slug, description string, price int64, cycle BillingCycle, features map[string]any) (*Plan, error) {
	if name == "" || price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if cycle != BillingCycleMonthly && cycle != BillingCycleAnnually {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	if slug == "" {
		slug = Slugify(name)
	}
	now := time.Now()
	return &Plan{
		ID:           id,
		Name:         name,
		Slug:         slug,
		Description:  description,
		Price:        price,
		BillingCycle: cycle,
		Features:     features,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Slugify lowercases and dash-joins a plan name for URL use.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
