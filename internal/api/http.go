package api

import (
	"context"
	"net/http"
	"net/url"

	"pft/internal/client"
	"pft/internal/core"
)

// HTTP implements API over the session client. Paths are relative to the
// client's base URL.
type HTTP struct {
	c *client.Client
}

var _ API = (*HTTP)(nil)

func NewHTTP(c *client.Client) *HTTP {
	return &HTTP{c: c}
}

func (a *HTTP) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	return client.PostJSON[LoginResponse](ctx, a.c, "/auth/login", creds)
}

func (a *HTTP) Register(ctx context.Context, reg Registration) (core.User, error) {
	return client.PostJSON[core.User](ctx, a.c, "/auth/register", reg)
}

func (a *HTTP) Me(ctx context.Context) (core.User, error) {
	return client.GetJSON[core.User](ctx, a.c, "/auth/me")
}

func (a *HTTP) Logout(ctx context.Context) error {
	return a.c.DoJSON(ctx, http.MethodPost, "/auth/logout", struct{}{}, nil)
}

func (a *HTTP) ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	return client.GetJSON[[]core.Transaction](ctx, a.c, withQuery("/transactions", filter.Query()))
}

func (a *HTTP) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	return client.PostJSON[core.Transaction](ctx, a.c, "/transactions", in)
}

func (a *HTTP) UpdateTransaction(ctx context.Context, id core.ID, patch core.TransactionPatch) (core.Transaction, error) {
	return client.PatchJSON[core.Transaction](ctx, a.c, "/transactions/"+escape(id), patch)
}

func (a *HTTP) DeleteTransaction(ctx context.Context, id core.ID) error {
	return a.c.Delete(ctx, "/transactions/"+escape(id))
}

func (a *HTTP) ListCategories(ctx context.Context) ([]core.Category, error) {
	return client.GetJSON[[]core.Category](ctx, a.c, "/categories")
}

func (a *HTTP) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	return client.PostJSON[core.Category](ctx, a.c, "/categories", in)
}

func (a *HTTP) DeleteCategory(ctx context.Context, id core.ID) error {
	return a.c.Delete(ctx, "/categories/"+escape(id))
}

func (a *HTTP) ListBudgets(ctx context.Context, month string) ([]core.Budget, error) {
	q := url.Values{}
	if month != "" {
		q.Set("month", month)
	}
	return client.GetJSON[[]core.Budget](ctx, a.c, withQuery("/budgets", q))
}

func (a *HTTP) GetBudget(ctx context.Context, id core.ID) (core.Budget, error) {
	return client.GetJSON[core.Budget](ctx, a.c, "/budgets/"+escape(id))
}

func (a *HTTP) CreateBudget(ctx context.Context, in core.BudgetInput) (core.Budget, error) {
	return client.PostJSON[core.Budget](ctx, a.c, "/budgets", in)
}

func (a *HTTP) UpdateBudget(ctx context.Context, id core.ID, patch core.BudgetPatch) (core.Budget, error) {
	return client.PatchJSON[core.Budget](ctx, a.c, "/budgets/"+escape(id), patch)
}

func (a *HTTP) DeleteBudget(ctx context.Context, id core.ID) error {
	return a.c.Delete(ctx, "/budgets/"+escape(id))
}

func (a *HTTP) DashboardSummary(ctx context.Context, month string) (core.DashboardSummary, error) {
	q := url.Values{}
	q.Set("month", month)
	return client.GetJSON[core.DashboardSummary](ctx, a.c, withQuery("/dashboard/summary", q))
}

func (a *HTTP) Report(ctx context.Context, params core.ReportParams) (core.Report, error) {
	return client.GetJSON[core.Report](ctx, a.c, withQuery("/reports", params.Query()))
}

// withQuery appends q to path, leaving path bare when q is empty.
func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func escape(id core.ID) string {
	return url.PathEscape(id.String())
}
