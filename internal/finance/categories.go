package finance

import (
	"context"
	"time"

	"pft/internal/api"
	"pft/internal/cache"
	"pft/internal/core"
	"pft/internal/mutation"
)

const resourceCategories = "categories"

// CategoriesKey holds the single category list.
var CategoriesKey = cache.NewKey(resourceCategories)

type Categories struct {
	api   api.Categories
	cache *cache.Cache
	stale time.Duration
	m     *mutation.Coordinator[core.Category]
}

func newCategories(remote api.Categories, c *cache.Cache, stale time.Duration, opts mutation.Options) *Categories {
	return &Categories{
		api:   remote,
		cache: c,
		stale: stale,
		m: mutation.New(c, mutation.Resource[core.Category]{
			Name:   resourceCategories,
			Prefix: CategoriesKey,
			ID:     func(c core.Category) core.ID { return c.ID },
			Append: true,
		}, opts),
	}
}

func (c *Categories) List(ctx context.Context) ([]core.Category, error) {
	return cache.Read(ctx, c.cache, CategoriesKey, c.api.ListCategories, c.stale)
}

func (c *Categories) Create(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	return c.m.Create(ctx, in, in.Provisional, func(ctx context.Context) (core.Category, error) {
		return c.api.CreateCategory(ctx, in)
	})
}

func (c *Categories) Delete(ctx context.Context, id core.ID) error {
	return c.m.Delete(ctx, id, func(ctx context.Context) error {
		return c.api.DeleteCategory(ctx, id)
	})
}

// cachedCategoryType looks id up in the cached category list without
// fetching.
func cachedCategoryType(c *cache.Cache, id core.ID) core.TxType {
	cats, ok := cache.Get[[]core.Category](c, CategoriesKey)
	if !ok {
		return ""
	}
	for _, cat := range cats {
		if cat.ID == id {
			return cat.Type
		}
	}
	return ""
}
