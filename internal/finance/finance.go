// Package finance exposes the personal finance resources to the application:
// cached reads and optimistic writes for transactions, categories and
// budgets, plus the dashboard and report summaries.
package finance

import (
	"time"

	"pft/internal/api"
	"pft/internal/cache"
	"pft/internal/events"
	"pft/internal/log"
	"pft/internal/metrics"
	"pft/internal/mutation"
)

// StaleTimes is how long a cached read is served without refetching.
type StaleTimes struct {
	Transactions time.Duration
	Categories   time.Duration
	Budgets      time.Duration
	Dashboard    time.Duration
	Reports      time.Duration
}

func DefaultStaleTimes() StaleTimes {
	return StaleTimes{
		Transactions: 30 * time.Second,
		Categories:   5 * time.Minute,
		Budgets:      time.Minute,
		Dashboard:    time.Minute,
		Reports:      time.Minute,
	}
}

type Options struct {
	Stale     StaleTimes
	Logger    *log.Logger
	Metrics   *metrics.Metrics
	Publisher events.Publisher
}

// Service groups the resource services over one cache.
type Service struct {
	Transactions *Transactions
	Categories   *Categories
	Budgets      *Budgets
	Dashboard    *Dashboard
	Reports      *Reports

	cache *cache.Cache
}

func New(remote api.API, c *cache.Cache, opts Options) *Service {
	if opts.Stale == (StaleTimes{}) {
		opts.Stale = DefaultStaleTimes()
	}
	mopts := mutation.Options{Logger: opts.Logger, Metrics: opts.Metrics, Publisher: opts.Publisher}
	return &Service{
		Transactions: newTransactions(remote, c, opts.Stale.Transactions, mopts),
		Categories:   newCategories(remote, c, opts.Stale.Categories, mopts),
		Budgets:      newBudgets(remote, c, opts.Stale.Budgets, mopts),
		Dashboard:    &Dashboard{api: remote, cache: c, stale: opts.Stale.Dashboard},
		Reports:      &Reports{api: remote, cache: c, stale: opts.Stale.Reports},
		cache:        c,
	}
}

// Cache returns the shared resource cache.
func (s *Service) Cache() *cache.Cache { return s.cache }

// Clear drops every cached resource. Registered as a logout hook so the next
// user never sees the previous user's data.
func (s *Service) Clear() {
	s.cache.Reset()
}
