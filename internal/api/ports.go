// Package api defines the REST surface the client consumes and an adapter
// that speaks it over the session client.
package api

import (
	"context"

	"pft/internal/core"
)

// Wire shapes of the auth endpoints.
type (
	Credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	Registration struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	LoginResponse struct {
		AccessToken string    `json:"access_token"`
		TokenType   string    `json:"token_type"`
		User        core.User `json:"user"`
	}
)

// Ports for the remote API.
type (
	Auth interface {
		Login(ctx context.Context, creds Credentials) (LoginResponse, error)
		Register(ctx context.Context, reg Registration) (core.User, error)
		Me(ctx context.Context) (core.User, error)
		Logout(ctx context.Context) error
	}

	Transactions interface {
		ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, id core.ID, patch core.TransactionPatch) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id core.ID) error
	}

	Categories interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error)
		DeleteCategory(ctx context.Context, id core.ID) error
	}

	Budgets interface {
		// ListBudgets returns every budget when month is empty.
		ListBudgets(ctx context.Context, month string) ([]core.Budget, error)
		GetBudget(ctx context.Context, id core.ID) (core.Budget, error)
		CreateBudget(ctx context.Context, in core.BudgetInput) (core.Budget, error)
		UpdateBudget(ctx context.Context, id core.ID, patch core.BudgetPatch) (core.Budget, error)
		DeleteBudget(ctx context.Context, id core.ID) error
	}

	Dashboard interface {
		DashboardSummary(ctx context.Context, month string) (core.DashboardSummary, error)
	}

	Reports interface {
		Report(ctx context.Context, params core.ReportParams) (core.Report, error)
	}

	// API is the full remote surface.
	API interface {
		Auth
		Transactions
		Categories
		Budgets
		Dashboard
		Reports
	}
)
