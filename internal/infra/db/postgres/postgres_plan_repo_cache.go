package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/repository"
	"mpesa-subscription-billing/internal/infra/metrics"
	red "mpesa-subscription-billing/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator caches the read-mostly plan catalog in Redis; the
// payment path hits FindByID on every initiation with a selected plan.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("plan", "hit")
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			return &plan, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		bytes, _ := json.Marshal(plan)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	// Slug lookups are admin-side only; no caching.
	return d.inner.FindBySlug(ctx, tx, slug)
}

// Write operations invalidate both the per-plan entry and the list caches.
func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	d.cache.Del(ctx, fmt.Sprintf("plan:%s", plan.ID), "plans:all", "plans:active")
	return d.inner.Save(ctx, tx, plan)
}

func (d *planRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	d.cache.Del(ctx, fmt.Sprintf("plan:%s", id), "plans:all", "plans:active")
	return d.inner.Delete(ctx, tx, id)
}

func (d *planRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Plan, error) {
	key := "plans:all"
	if activeOnly {
		key = "plans:active"
	}
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("plan_list", "hit")
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			return plans, nil
		}
	}

	metrics.IncCacheRequest("plan_list", "miss")
	plans, err := d.inner.ListAll(ctx, tx, activeOnly)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		bytes, _ := json.Marshal(plans)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plans, nil
}
