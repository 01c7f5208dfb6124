package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mpesa-subscription-billing/internal/config"
	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
	pg "mpesa-subscription-billing/internal/infra/db/postgres"
)

type seedPlan struct {
	Name         string
	Slug         string
	Description  string
	Price        int64
	BillingCycle model.BillingCycle
	Features     map[string]any
	IsPopular    bool
	DisplayOrder int
}

var plans = []seedPlan{
	{
		Name: "Free", Slug: "free-monthly",
		Description: "Basic features for individuals",
		Price:       0, BillingCycle: model.BillingCycleMonthly,
		Features:     map[string]any{"storage": "1GB", "users": "1", "support": "Community", "analytics": false},
		DisplayOrder: 1,
	},
	{
		Name: "Starter Monthly", Slug: "starter-monthly",
		Description: "Perfect for small teams",
		Price:       2500, BillingCycle: model.BillingCycleMonthly,
		Features:     map[string]any{"storage": "10GB", "users": "5", "support": "Email", "analytics": true},
		IsPopular:    true,
		DisplayOrder: 2,
	},
	{
		Name: "Starter Annual", Slug: "starter-annual",
		Description: "Perfect for small teams (Save 16%)",
		Price:       25000, BillingCycle: model.BillingCycleAnnually,
		Features:     map[string]any{"storage": "10GB", "users": "5", "support": "Email", "analytics": true},
		DisplayOrder: 3,
	},
	{
		Name: "Professional Monthly", Slug: "professional-monthly",
		Description: "For growing businesses",
		Price:       5000, BillingCycle: model.BillingCycleMonthly,
		Features:     map[string]any{"storage": "50GB", "users": "20", "support": "Priority", "analytics": true, "api_access": true},
		DisplayOrder: 4,
	},
	{
		Name: "Professional Annual", Slug: "professional-annual",
		Description: "For growing businesses (Save 16%)",
		Price:       50000, BillingCycle: model.BillingCycleAnnually,
		Features:     map[string]any{"storage": "50GB", "users": "20", "support": "Priority", "analytics": true, "api_access": true},
		DisplayOrder: 5,
	},
	{
		Name: "Enterprise Monthly", Slug: "enterprise-monthly",
		Description: "Advanced features for large organizations",
		Price:       10000, BillingCycle: model.BillingCycleMonthly,
		Features:     map[string]any{"storage": "Unlimited", "users": "Unlimited", "support": "24/7 Dedicated", "analytics": true, "api_access": true, "custom_integrations": true},
		DisplayOrder: 6,
	},
	{
		Name: "Enterprise Annual", Slug: "enterprise-annual",
		Description: "Advanced features for large organizations (Save 16%)",
		Price:       100000, BillingCycle: model.BillingCycleAnnually,
		Features:     map[string]any{"storage": "Unlimited", "users": "Unlimited", "support": "24/7 Dedicated", "analytics": true, "api_access": true, "custom_integrations": true},
		DisplayOrder: 7,
	},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := pg.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	planRepo := pg.NewPlanRepo(pool)
	created := 0
	for _, s := range plans {
		// Slug is the natural key; existing plans are left untouched.
		if _, err := planRepo.FindBySlug(ctx, repository.NoTX, s.Slug); err == nil {
			fmt.Printf("  already exists: %s\n", s.Slug)
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			log.Fatalf("lookup %s: %v", s.Slug, err)
		}

		plan, err := model.NewPlan(uuid.NewString(), s.Name, s.Slug, s.Description, s.Price, s.BillingCycle, s.Features)
		if err != nil {
			log.Fatalf("build plan %s: %v", s.Slug, err)
		}
		plan.IsPopular = s.IsPopular
		plan.DisplayOrder = s.DisplayOrder

		if err := planRepo.Save(ctx, repository.NoTX, plan); err != nil {
			log.Fatalf("save plan %s: %v", s.Slug, err)
		}
		created++
		fmt.Printf("  created: %s - KSh %d/%s\n", plan.Name, plan.Price, plan.BillingCycle)
	}
	fmt.Printf("loaded %d new plans\n", created)
}
