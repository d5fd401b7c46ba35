package fakeapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pft/internal/core"
)

const (
	dashboardRecent = 10
	reportRecent    = 20
	reportCurrency  = "USD"
	monthLayout     = "2006-01"
)

var hundred = decimal.NewFromInt(100)

// monthBounds returns the first and last YYYY-MM-DD dates of month.
func monthBounds(month string) (string, string) {
	first, _ := time.Parse(monthLayout, month)
	last := first.AddDate(0, 1, -1)
	return first.Format(time.DateOnly), last.Format(time.DateOnly)
}

func prevMonth(month string) string {
	first, _ := time.Parse(monthLayout, month)
	return first.AddDate(0, -1, 0).Format(monthLayout)
}

// pct returns part/whole*100 rounded to two places, zero when whole is not
// positive.
func pct(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Div(whole).Mul(hundred).Round(2).Float64()
	return f
}

func mini(t core.Transaction) core.TxMini {
	return core.TxMini{
		ID:         t.ID,
		Title:      t.Title,
		Amount:     t.Amount,
		CategoryID: t.CategoryID,
		Date:       t.Date,
		Type:       t.Type,
	}
}

func recent(txs []core.Transaction, n int) []core.TxMini {
	out := make([]core.TxMini, 0, n)
	for _, t := range txs {
		if len(out) == n {
			break
		}
		out = append(out, mini(t))
	}
	return out
}

// byCategory totals txs per category, largest first. Expense rows carry their
// share of all expenses.
func byCategory(txs []core.Transaction, cats map[core.ID]core.Category) []core.CategoryStat {
	totals := make(map[core.ID]decimal.Decimal)
	for _, t := range txs {
		totals[t.CategoryID] = totals[t.CategoryID].Add(t.Amount)
	}
	expenses := sum(txs, core.Expense)

	out := make([]core.CategoryStat, 0, len(totals))
	for id, total := range totals {
		c := cats[id]
		stat := core.CategoryStat{
			CategoryID: id,
			Name:       c.Name,
			Emoji:      c.Emoji,
			Color:      c.Color,
			Type:       c.Type,
			Total:      total,
		}
		if c.Type == core.Expense {
			stat.SharePct = pct(total, expenses)
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// budgetUsage reports spending against each of owner's budgets for month.
func (s *Server) budgetUsage(owner int64, month string, txs []core.Transaction) []core.BudgetUsage {
	spent := make(map[core.ID]decimal.Decimal)
	for _, t := range txs {
		if t.Type == core.Expense {
			spent[t.CategoryID] = spent[t.CategoryID].Add(t.Amount)
		}
	}
	budgets := s.store.Budgets(owner, month)
	out := make([]core.BudgetUsage, 0, len(budgets))
	for _, b := range budgets {
		used := spent[b.CategoryID]
		usage := pct(used, b.Limit)
		status := "ok"
		switch {
		case usage > 100:
			status = "over"
		case usage == 100:
			status = "hit"
		}
		out = append(out, core.BudgetUsage{
			BudgetID:   b.ID,
			CategoryID: b.CategoryID,
			Month:      month,
			Limit:      b.Limit,
			Spent:      used,
			UsagePct:   usage,
			Status:     status,
		})
	}
	return out
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if !core.ValidMonth(month) {
		writeValidation(w, errMonthRequired)
		return
	}
	owner := userID(r.Context())
	from, to := monthBounds(month)
	txs := s.store.period(owner, from, to)

	income := sum(txs, core.Income)
	expense := sum(txs, core.Expense)
	writeJSON(w, http.StatusOK, core.DashboardSummary{
		Month:        month,
		IncomeTotal:  income.Round(2),
		ExpenseTotal: expense.Round(2),
		Net:          income.Sub(expense).Round(2),
		ByCategory:   byCategory(txs, s.store.categoryIndex(owner)),
		Recent:       recent(txs, dashboardRecent),
		BudgetUsage:  s.budgetUsage(owner, month, txs),
	})
}

var errMonthRequired = validationError("month", "must be YYYY-MM")

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, start, end := q.Get("month"), q.Get("start"), q.Get("end")
	if month == "" && (start == "" || end == "") {
		writeDetail(w, http.StatusBadRequest, "Provide ?month=YYYY-MM or ?start=YYYY-MM&end=YYYY-MM")
		return
	}
	if month != "" {
		start, end = month, month
	}
	if !core.ValidMonth(start) || !core.ValidMonth(end) {
		writeValidation(w, validationError("start", "must be YYYY-MM"))
		return
	}
	if end < start {
		writeDetail(w, http.StatusBadRequest, "end must not be before start")
		return
	}

	owner := userID(r.Context())
	from, _ := monthBounds(start)
	_, to := monthBounds(end)
	txs := s.store.period(owner, from, to)

	var rep core.Report
	rep.Period.Start, rep.Period.End = start, end
	rep.Currency = reportCurrency
	rep.KPIs = kpis(txs)
	if month != "" {
		pf, pt := monthBounds(prevMonth(month))
		rep.KPIs.MoM = mom(rep.KPIs, kpis(s.store.period(owner, pf, pt)))
	}
	rep.Cashflow.Daily, rep.Cashflow.Monthly = cashflow(txs)
	rep.ByCategory = byCategory(txs, s.store.categoryIndex(owner))
	rep.BudgetUsage = []core.BudgetUsage{}
	if month != "" {
		rep.BudgetUsage = s.budgetUsage(owner, month, txs)
	}
	rep.Recent = recent(txs, reportRecent)
	rep.Recurring = []map[string]any{}
	rep.Anomalies = []map[string]any{}
	writeJSON(w, http.StatusOK, rep)
}

func kpis(txs []core.Transaction) core.ReportKPIs {
	income := sum(txs, core.Income)
	expense := sum(txs, core.Expense)
	net := income.Sub(expense)
	k := core.ReportKPIs{
		IncomeTotal:  income,
		ExpenseTotal: expense,
		Net:          net,
		SavingsRate:  pct(net, income),
		TxCount:      len(txs),
		AvgTx:        decimal.Zero,
	}
	if len(txs) > 0 {
		k.AvgTx = income.Add(expense).Div(decimal.NewFromInt(int64(len(txs)))).Round(2)
	}
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		if k.LargestExpense == nil || t.Amount.GreaterThan(k.LargestExpense.Amount) {
			m := mini(t)
			k.LargestExpense = &m
		}
	}
	return k
}

// mom compares cur against prev in percent. A metric whose previous value is
// zero has no change figure.
func mom(cur, prev core.ReportKPIs) map[string]*float64 {
	change := func(a, b decimal.Decimal) *float64 {
		if b.IsZero() {
			return nil
		}
		f, _ := a.Sub(b).Div(b.Abs()).Mul(hundred).Round(2).Float64()
		return &f
	}
	return map[string]*float64{
		"income":  change(cur.IncomeTotal, prev.IncomeTotal),
		"expense": change(cur.ExpenseTotal, prev.ExpenseTotal),
		"net":     change(cur.Net, prev.Net),
	}
}

// cashflow groups txs by day and by month, both in ascending order.
func cashflow(txs []core.Transaction) (daily, monthly []core.CashflowPoint) {
	days := make(map[string]*core.CashflowPoint)
	months := make(map[string]*core.CashflowPoint)
	add := func(index map[string]*core.CashflowPoint, key string, t core.Transaction, point func() *core.CashflowPoint) {
		p, ok := index[key]
		if !ok {
			p = point()
			index[key] = p
		}
		if t.Type == core.Income {
			p.Income = p.Income.Add(t.Amount)
		} else {
			p.Expense = p.Expense.Add(t.Amount)
		}
		p.Net = p.Income.Sub(p.Expense)
	}
	for _, t := range txs {
		add(days, t.Date, t, func() *core.CashflowPoint { return &core.CashflowPoint{Date: t.Date} })
		m := t.Date[:7]
		add(months, m, t, func() *core.CashflowPoint { return &core.CashflowPoint{Month: m} })
	}
	return flatten(days), flatten(months)
}

func flatten(index map[string]*core.CashflowPoint) []core.CashflowPoint {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]core.CashflowPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, *index[k])
	}
	return out
}
