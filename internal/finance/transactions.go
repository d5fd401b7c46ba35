package finance

import (
	"context"
	"net/url"
	"time"

	"pft/internal/api"
	"pft/internal/cache"
	"pft/internal/core"
	"pft/internal/mutation"
)

const resourceTransactions = "transactions"

// TransactionsKey is the cache key of one filtered transaction page.
func TransactionsKey(filter core.TransactionFilter) cache.Key {
	return cache.ParamsKey(filter.Query(), resourceTransactions, "list")
}

func transactionKey(id core.ID) (cache.Key, bool) {
	return cache.NewKey(resourceTransactions, "detail", id.String()), true
}

type Transactions struct {
	api   api.Transactions
	cache *cache.Cache
	stale time.Duration
	m     *mutation.Coordinator[core.Transaction]
}

func newTransactions(remote api.Transactions, c *cache.Cache, stale time.Duration, opts mutation.Options) *Transactions {
	return &Transactions{
		api:   remote,
		cache: c,
		stale: stale,
		m: mutation.New(c, mutation.Resource[core.Transaction]{
			Name:    resourceTransactions,
			Prefix:  cache.NewKey(resourceTransactions),
			ID:      func(t core.Transaction) core.ID { return t.ID },
			Accepts: acceptsTransaction,
			Detail:  transactionKey,
		}, opts),
	}
}

// acceptsTransaction places new records only on the first page of lists whose
// filter they match.
func acceptsTransaction(key cache.Key, tx core.Transaction) bool {
	if key.Part(1) != "list" {
		return false
	}
	q, err := url.ParseQuery(key.Part(2))
	if err != nil {
		return false
	}
	f := core.ParseTransactionFilter(q)
	return f.Offset == 0 && f.Matches(tx)
}

func (t *Transactions) List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	return cache.Read(ctx, t.cache, TransactionsKey(filter), func(ctx context.Context) ([]core.Transaction, error) {
		return t.api.ListTransactions(ctx, filter)
	}, t.stale)
}

// Cached returns the last canonical copy of a transaction written by Create
// or Update.
func (t *Transactions) Cached(id core.ID) (core.Transaction, bool) {
	key, _ := transactionKey(id)
	return cache.Get[core.Transaction](t.cache, key)
}

// Create lists a provisional transaction right away. Its type is taken from
// the cached category when known so type-filtered lists place it correctly.
func (t *Transactions) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	return t.m.Create(ctx, in, func(id core.ID) core.Transaction {
		tx := in.Provisional(id)
		tx.Type = cachedCategoryType(t.cache, in.CategoryID)
		return tx
	}, func(ctx context.Context) (core.Transaction, error) {
		return t.api.CreateTransaction(ctx, in)
	})
}

func (t *Transactions) Update(ctx context.Context, id core.ID, patch core.TransactionPatch) (core.Transaction, error) {
	return t.m.Update(ctx, id, patch, patch.Apply, func(ctx context.Context) (core.Transaction, error) {
		return t.api.UpdateTransaction(ctx, id, patch)
	})
}

func (t *Transactions) Delete(ctx context.Context, id core.ID) error {
	return t.m.Delete(ctx, id, func(ctx context.Context) error {
		return t.api.DeleteTransaction(ctx, id)
	})
}
