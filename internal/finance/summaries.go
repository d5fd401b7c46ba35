package finance

import (
	"context"
	"time"

	"pft/internal/api"
	"pft/internal/apperr"
	"pft/internal/cache"
	"pft/internal/core"
)

// DashboardKey caches the summary of one month.
func DashboardKey(month string) cache.Key {
	return cache.NewKey("dashboard", "summary", month)
}

// ReportKey caches one report. A month wins over a range, so callers passing
// both share the month's entry.
func ReportKey(params core.ReportParams) cache.Key {
	return cache.ParamsKey(params.Query(), "reports")
}

type Dashboard struct {
	api   api.Dashboard
	cache *cache.Cache
	stale time.Duration
}

func (d *Dashboard) Summary(ctx context.Context, month string) (core.DashboardSummary, error) {
	if !core.ValidMonth(month) {
		return core.DashboardSummary{}, invalidMonth("dashboard summary")
	}
	return cache.Read(ctx, d.cache, DashboardKey(month), func(ctx context.Context) (core.DashboardSummary, error) {
		return d.api.DashboardSummary(ctx, month)
	}, d.stale)
}

// Prefetch warms the cache for month, typically the neighbouring one.
func (d *Dashboard) Prefetch(ctx context.Context, month string) error {
	_, err := d.Summary(ctx, month)
	return err
}

// FromCache returns the cached summary without fetching.
func (d *Dashboard) FromCache(month string) (core.DashboardSummary, bool) {
	return cache.Get[core.DashboardSummary](d.cache, DashboardKey(month))
}

type Reports struct {
	api   api.Reports
	cache *cache.Cache
	stale time.Duration
}

func (r *Reports) Get(ctx context.Context, params core.ReportParams) (core.Report, error) {
	if err := params.Validate(); err != nil {
		return core.Report{}, err
	}
	params = params.Normalize()
	return cache.Read(ctx, r.cache, ReportKey(params), func(ctx context.Context) (core.Report, error) {
		return r.api.Report(ctx, params)
	}, r.stale)
}

func (r *Reports) Prefetch(ctx context.Context, params core.ReportParams) error {
	_, err := r.Get(ctx, params)
	return err
}

func (r *Reports) FromCache(params core.ReportParams) (core.Report, bool) {
	return cache.Get[core.Report](r.cache, ReportKey(params))
}

func invalidMonth(op string) error {
	return apperr.Validation(op, map[string]string{"month": "must be YYYY-MM"})
}
