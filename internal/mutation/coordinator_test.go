package mutation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pft/internal/apperr"
	"pft/internal/cache"
	"pft/internal/core"
	"pft/internal/events"
	"pft/internal/metrics"
)

func budgetResource() Resource[core.Budget] {
	return Resource[core.Budget]{
		Name:   "budgets",
		Prefix: cache.NewKey("budgets"),
		ID:     func(b core.Budget) core.ID { return b.ID },
		Accepts: func(key cache.Key, b core.Budget) bool {
			scope := key.Part(1)
			return scope == "all" || scope == b.Month
		},
		Detail: func(id core.ID) (cache.Key, bool) {
			return cache.NewKey("budgets", "detail", id.String()), true
		},
	}
}

func txResource() Resource[core.Transaction] {
	return Resource[core.Transaction]{
		Name:   "transactions",
		Prefix: cache.NewKey("transactions"),
		ID:     func(tx core.Transaction) core.ID { return tx.ID },
	}
}

func fiveTransactions() []core.Transaction {
	out := make([]core.Transaction, 0, 5)
	for _, id := range []core.ID{"40", "41", "42", "43", "44"} {
		out = append(out, core.Transaction{
			ID:         id,
			Title:      "tx " + id.String(),
			Amount:     decimal.NewFromInt(10),
			CategoryID: "c1",
			Date:       "2024-05-10",
			Type:       core.Expense,
		})
	}
	return out
}

func serverError(op string) error {
	return apperr.FromStatus(op, http.StatusInternalServerError, "500 Internal Server Error")
}

func TestCreateBudgetShowsProvisionalThenCanonical(t *testing.T) {
	c := cache.New(cache.Options{})
	may := cache.NewKey("budgets", "2024-05")
	june := cache.NewKey("budgets", "2024-06")
	existing := core.Budget{ID: "b1", CategoryID: "c2", Limit: decimal.NewFromInt(100), Month: "2024-05"}
	c.Write(may, []core.Budget{existing})
	c.Write(june, []core.Budget{})

	recorder := &events.Recorder{}
	m := New(c, budgetResource(), Options{Publisher: recorder})
	input := core.BudgetInput{CategoryID: "c1", Limit: decimal.NewFromInt(500), Month: "2024-05"}

	var seen []core.Budget
	created, err := m.Create(context.Background(), input, input.Provisional,
		func(context.Context) (core.Budget, error) {
			seen, _ = cache.Get[[]core.Budget](c, may)
			b := input.Provisional("b99")
			return b, nil
		})
	require.NoError(t, err)
	assert.Equal(t, core.ID("b99"), created.ID)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].ID.IsTemp())
	assert.Equal(t, core.ID("c1"), seen[0].CategoryID)
	assert.True(t, decimal.NewFromInt(500).Equal(seen[0].Limit))
	assert.Equal(t, "2024-05", seen[0].Month)
	assert.Equal(t, existing, seen[1])

	after, ok := cache.Get[[]core.Budget](c, may)
	require.True(t, ok)
	require.Len(t, after, 2)
	assert.Equal(t, core.ID("b99"), after[0].ID)
	for _, b := range after {
		assert.False(t, b.ID.IsTemp())
	}
	assert.True(t, c.State(may).Invalidated)

	other, _ := cache.Get[[]core.Budget](c, june)
	assert.Empty(t, other)

	detail, ok := cache.Get[core.Budget](c, cache.NewKey("budgets", "detail", "b99"))
	require.True(t, ok)
	assert.Equal(t, created, detail)

	evs := recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OutcomeSuccess, evs[0].Outcome)
	assert.Equal(t, core.ID("b99"), evs[0].ID)
	assert.True(t, evs[0].TempID.IsTemp())
}

func TestDeleteFailureRestoresOriginalList(t *testing.T) {
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	c := cache.New(cache.Options{})
	key := cache.NewKey("transactions", "list", "")
	original := fiveTransactions()
	c.Write(key, original)
	before := c.State(key)

	m := New(c, txResource(), Options{Metrics: met})
	var during []core.Transaction
	err := m.Delete(context.Background(), "42", func(context.Context) error {
		during, _ = cache.Get[[]core.Transaction](c, key)
		return serverError("DELETE /transactions/42")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.Len(t, during, 4)
	for _, tx := range during {
		assert.NotEqual(t, core.ID("42"), tx.ID)
	}

	after, ok := cache.Get[[]core.Transaction](c, key)
	require.True(t, ok)
	assert.Equal(t, original, after)
	assert.Equal(t, before.UpdatedAt, c.State(key).UpdatedAt)
	// Destructive failures reconcile with the server on the next read.
	assert.True(t, c.State(key).Invalidated)

	assert.Equal(t, float64(1), testutil.ToFloat64(met.Rollbacks.WithLabelValues("transactions")))
	assert.Equal(t, float64(1), testutil.ToFloat64(met.Mutations.WithLabelValues("transactions", "delete", "failure")))
}

func TestFailedMutationsRestoreExactState(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Coordinator[core.Transaction]) error
	}{
		{
			name: "create",
			run: func(m *Coordinator[core.Transaction]) error {
				in := core.TransactionInput{Title: "Coffee", Amount: decimal.NewFromInt(3), CategoryID: "c1", Date: "2024-05-11"}
				_, err := m.Create(context.Background(), in, in.Provisional, func(context.Context) (core.Transaction, error) {
					return core.Transaction{}, apperr.Network("POST /transactions", errors.New("connection refused"))
				})
				return err
			},
		},
		{
			name: "update",
			run: func(m *Coordinator[core.Transaction]) error {
				title := "Renamed"
				patch := core.TransactionPatch{Title: &title}
				_, err := m.Update(context.Background(), "41", patch, patch.Apply, func(context.Context) (core.Transaction, error) {
					return core.Transaction{}, serverError("PATCH /transactions/41")
				})
				return err
			},
		},
		{
			name: "delete",
			run: func(m *Coordinator[core.Transaction]) error {
				return m.Delete(context.Background(), "40", func(context.Context) error {
					return serverError("DELETE /transactions/40")
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cache.New(cache.Options{})
			all := cache.NewKey("transactions", "list", "")
			filtered := cache.NewKey("transactions", "list", "q=tx")
			detail := cache.NewKey("transactions", "detail", "41")
			c.Write(all, fiveTransactions())
			c.Write(filtered, fiveTransactions()[:2])
			c.Write(detail, fiveTransactions()[1])
			snapshot := map[string]any{}
			for _, k := range c.Keys(cache.NewKey("transactions")) {
				v, _ := c.Peek(k)
				snapshot[k.String()] = v
			}

			m := New(c, Resource[core.Transaction]{
				Name:   "transactions",
				Prefix: cache.NewKey("transactions"),
				ID:     func(tx core.Transaction) core.ID { return tx.ID },
				Detail: func(id core.ID) (cache.Key, bool) {
					return cache.NewKey("transactions", "detail", id.String()), true
				},
			}, Options{})
			require.Error(t, tt.run(m))

			keys := c.Keys(cache.NewKey("transactions"))
			require.Len(t, keys, len(snapshot))
			for _, k := range keys {
				v, _ := c.Peek(k)
				assert.Equal(t, snapshot[k.String()], v, k.String())
			}
		})
	}
}

func TestUpdateSwapsCanonicalRecord(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.NewKey("transactions", "list", "")
	original := fiveTransactions()
	c.Write(key, original)
	m := New(c, txResource(), Options{})

	title := "Groceries"
	patch := core.TransactionPatch{Title: &title}
	var optimistic []core.Transaction
	updated, err := m.Update(context.Background(), "43", patch, patch.Apply, func(context.Context) (core.Transaction, error) {
		optimistic, _ = cache.Get[[]core.Transaction](c, key)
		tx := fiveTransactions()[3]
		tx.Title = "Groceries (server)"
		return tx, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", optimistic[3].Title)
	assert.Equal(t, "tx 43", original[3].Title)

	list, _ := cache.Get[[]core.Transaction](c, key)
	assert.Equal(t, updated, list[3])
	assert.Equal(t, "Groceries (server)", list[3].Title)
	assert.True(t, c.State(key).Invalidated)
}

func TestValidationErrorLeavesCacheUntouched(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.NewKey("budgets", "2024-05")
	c.Write(key, []core.Budget{{ID: "b1", Month: "2024-05"}})
	before := c.State(key)
	m := New(c, budgetResource(), Options{})

	called := false
	input := core.BudgetInput{CategoryID: "", Limit: decimal.NewFromInt(-1), Month: "May"}
	_, err := m.Create(context.Background(), input, input.Provisional, func(context.Context) (core.Budget, error) {
		called = true
		return core.Budget{}, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.False(t, called)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "limit")
	assert.Contains(t, ae.Fields, "month")
	assert.Equal(t, before, c.State(key))
}

func TestCancelKeepsInflightReadFromClobberingOptimisticWrite(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.NewKey("transactions", "list", "")
	c.Write(key, fiveTransactions())
	c.Invalidate(key)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = cache.Read(context.Background(), c, key, func(context.Context) ([]core.Transaction, error) {
			close(started)
			<-release
			return fiveTransactions(), nil
		}, time.Minute)
	}()
	<-started

	m := New(c, txResource(), Options{})
	err := m.Delete(context.Background(), "42", func(context.Context) error {
		close(release)
		wg.Wait()
		list, _ := cache.Get[[]core.Transaction](c, key)
		assert.Len(t, list, 4)
		return nil
	})
	require.NoError(t, err)

	list, _ := cache.Get[[]core.Transaction](c, key)
	assert.Len(t, list, 4)
}

func TestMutationsStayWithinResource(t *testing.T) {
	c := cache.New(cache.Options{})
	c.Write(cache.NewKey("transactions", "list", ""), fiveTransactions())
	c.Write(cache.NewKey("budgets", "2024-05"), []core.Budget{{ID: "42", Month: "2024-05"}})
	m := New(c, txResource(), Options{})

	require.NoError(t, m.Delete(context.Background(), "42", func(context.Context) error { return nil }))

	budgets, _ := cache.Get[[]core.Budget](c, cache.NewKey("budgets", "2024-05"))
	assert.Len(t, budgets, 1)
	assert.False(t, c.State(cache.NewKey("budgets", "2024-05")).Invalidated)
}
