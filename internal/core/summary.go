package core

import "github.com/shopspring/decimal"

// CategoryStat is one category's aggregate within a period.
type CategoryStat struct {
	CategoryID ID              `json:"categoryId"`
	Name       string          `json:"name"`
	Emoji      string          `json:"emoji,omitempty"`
	Color      string          `json:"color,omitempty"`
	Type       TxType          `json:"type"`
	Total      decimal.Decimal `json:"total"`
	SharePct   float64         `json:"sharePct,omitempty"`
	MoMPct     *float64        `json:"momPct,omitempty"`
}

type BudgetUsage struct {
	BudgetID   ID              `json:"budgetId"`
	CategoryID ID              `json:"categoryId,omitempty"`
	Month      string          `json:"month,omitempty"`
	Limit      decimal.Decimal `json:"limit"`
	Spent      decimal.Decimal `json:"spent"`
	UsagePct   float64         `json:"usagePct"`
	Status     string          `json:"status,omitempty"` // ok | hit | over
}

// TxMini is the compact transaction row used by summaries.
type TxMini struct {
	ID         ID              `json:"id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	CategoryID ID              `json:"categoryId"`
	Date       string          `json:"date"`
	Type       TxType          `json:"type"`
}

// DashboardSummary is the monthly overview served by /dashboard/summary.
type DashboardSummary struct {
	Month        string          `json:"month"`
	IncomeTotal  decimal.Decimal `json:"incomeTotal"`
	ExpenseTotal decimal.Decimal `json:"expenseTotal"`
	Net          decimal.Decimal `json:"net"`
	ByCategory   []CategoryStat  `json:"byCategory"`
	Recent       []TxMini        `json:"recent"`
	BudgetUsage  []BudgetUsage   `json:"budgetUsage"`
}

type ReportKPIs struct {
	IncomeTotal    decimal.Decimal     `json:"incomeTotal"`
	ExpenseTotal   decimal.Decimal     `json:"expenseTotal"`
	Net            decimal.Decimal     `json:"net"`
	SavingsRate    float64             `json:"savingsRate"`
	TxCount        int                 `json:"txCount"`
	AvgTx          decimal.Decimal     `json:"avgTx"`
	LargestExpense *TxMini             `json:"largestExpense,omitempty"`
	MoM            map[string]*float64 `json:"mom,omitempty"`
}

type CashflowPoint struct {
	Date    string          `json:"date,omitempty"`
	Month   string          `json:"month,omitempty"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type Report struct {
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
	Currency string     `json:"currency"`
	KPIs     ReportKPIs `json:"kpis"`
	Cashflow struct {
		Daily   []CashflowPoint `json:"daily"`
		Monthly []CashflowPoint `json:"monthly"`
	} `json:"cashflow"`
	ByCategory  []CategoryStat   `json:"byCategory"`
	BudgetUsage []BudgetUsage    `json:"budgetUsage"`
	Recent      []TxMini         `json:"recent"`
	Recurring   []map[string]any `json:"recurring"`
	Anomalies   []map[string]any `json:"anomalies"`
}
