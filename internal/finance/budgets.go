package finance

import (
	"context"
	"time"

	"pft/internal/api"
	"pft/internal/cache"
	"pft/internal/core"
	"pft/internal/mutation"
)

const (
	resourceBudgets = "budgets"
	allMonths       = "all"
)

// BudgetsKey is the cache key of the budget list for month, or of every
// budget when month is empty.
func BudgetsKey(month string) cache.Key {
	if month == "" {
		month = allMonths
	}
	return cache.NewKey(resourceBudgets, month)
}

// BudgetKey caches a single budget.
func BudgetKey(id core.ID) cache.Key {
	return cache.NewKey(resourceBudgets, "detail", id.String())
}

type Budgets struct {
	api   api.Budgets
	cache *cache.Cache
	stale time.Duration
	m     *mutation.Coordinator[core.Budget]
}

func newBudgets(remote api.Budgets, c *cache.Cache, stale time.Duration, opts mutation.Options) *Budgets {
	return &Budgets{
		api:   remote,
		cache: c,
		stale: stale,
		m: mutation.New(c, mutation.Resource[core.Budget]{
			Name:   resourceBudgets,
			Prefix: cache.NewKey(resourceBudgets),
			ID:     func(b core.Budget) core.ID { return b.ID },
			Accepts: func(key cache.Key, b core.Budget) bool {
				scope := key.Part(1)
				return scope == allMonths || scope == b.Month
			},
			Detail: func(id core.ID) (cache.Key, bool) { return BudgetKey(id), true },
		}, opts),
	}
}

func (b *Budgets) List(ctx context.Context, month string) ([]core.Budget, error) {
	return cache.Read(ctx, b.cache, BudgetsKey(month), func(ctx context.Context) ([]core.Budget, error) {
		return b.api.ListBudgets(ctx, month)
	}, b.stale)
}

func (b *Budgets) Get(ctx context.Context, id core.ID) (core.Budget, error) {
	return cache.Read(ctx, b.cache, BudgetKey(id), func(ctx context.Context) (core.Budget, error) {
		return b.api.GetBudget(ctx, id)
	}, b.stale)
}

func (b *Budgets) Create(ctx context.Context, in core.BudgetInput) (core.Budget, error) {
	return b.m.Create(ctx, in, in.Provisional, func(ctx context.Context) (core.Budget, error) {
		return b.api.CreateBudget(ctx, in)
	})
}

func (b *Budgets) Update(ctx context.Context, id core.ID, patch core.BudgetPatch) (core.Budget, error) {
	return b.m.Update(ctx, id, patch, patch.Apply, func(ctx context.Context) (core.Budget, error) {
		return b.api.UpdateBudget(ctx, id, patch)
	})
}

func (b *Budgets) Delete(ctx context.Context, id core.ID) error {
	return b.m.Delete(ctx, id, func(ctx context.Context) error {
		return b.api.DeleteBudget(ctx, id)
	})
}
