package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pft/internal/core"
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(reportCmd)

	dashboardCmd.Flags().StringP("month", "m", "", "YYYY-MM, current month when empty")
	dashboardCmd.Flags().Bool("prefetch-previous", false, "also warm the previous month")

	reportCmd.Flags().StringP("month", "m", "", "single month, YYYY-MM")
	reportCmd.Flags().String("start", "", "first month of a range, YYYY-MM")
	reportCmd.Flags().String("end", "", "last month of a range, YYYY-MM")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Monthly totals, top categories and budget usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		month, _ := cmd.Flags().GetString("month")
		if month == "" {
			month = core.CurrentMonth(time.Now())
		}
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		sum, err := app.Finance.Dashboard.Summary(cmd.Context(), month)
		if err != nil {
			return err
		}
		if prefetch, _ := cmd.Flags().GetBool("prefetch-previous"); prefetch {
			if err := app.Finance.Dashboard.Prefetch(cmd.Context(), previousMonth(month)); err != nil {
				app.Logger.Debug("Prefetch failed", "month", previousMonth(month), "error", err)
			}
		}
		return newPrinter(cmd).emit(sum, dashboardTable(sum))
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "KPIs, cash flow and category breakdown for a month or range",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var params core.ReportParams
		params.Month, _ = cmd.Flags().GetString("month")
		params.Start, _ = cmd.Flags().GetString("start")
		params.End, _ = cmd.Flags().GetString("end")
		if params.Month == "" && params.Start == "" && params.End == "" {
			params.Month = core.CurrentMonth(time.Now())
		}

		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		rep, err := app.Finance.Reports.Get(cmd.Context(), params)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(rep, reportTable(rep))
	},
}

func previousMonth(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return t.AddDate(0, -1, 0).Format("2006-01")
}

func dashboardTable(s core.DashboardSummary) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		row(tw, "MONTH", s.Month)
		row(tw, "INCOME", money(s.IncomeTotal))
		row(tw, "EXPENSES", money(s.ExpenseTotal))
		row(tw, "NET", money(s.Net))
		row(tw)
		row(tw, "CATEGORY", "TYPE", "TOTAL", "SHARE")
		for _, c := range s.ByCategory {
			row(tw, c.Emoji+" "+c.Name, c.Type, money(c.Total), percent(c.SharePct))
		}
		if len(s.BudgetUsage) > 0 {
			row(tw)
			row(tw, "BUDGET", "SPENT", "LIMIT", "USAGE", "STATUS")
			for _, b := range s.BudgetUsage {
				row(tw, b.BudgetID, money(b.Spent), money(b.Limit), percent(b.UsagePct), b.Status)
			}
		}
	}
}

func reportTable(r core.Report) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		k := r.KPIs
		row(tw, "PERIOD", fmt.Sprintf("%s to %s", r.Period.Start, r.Period.End))
		row(tw, "INCOME", money(k.IncomeTotal), "MOM", optPercent(k.MoM["income"]))
		row(tw, "EXPENSES", money(k.ExpenseTotal), "MOM", optPercent(k.MoM["expense"]))
		row(tw, "NET", money(k.Net), "MOM", optPercent(k.MoM["net"]))
		row(tw, "SAVINGS RATE", percent(k.SavingsRate))
		row(tw, "TRANSACTIONS", k.TxCount, "AVERAGE", money(k.AvgTx))
		if k.LargestExpense != nil {
			row(tw, "LARGEST EXPENSE", k.LargestExpense.Title, money(k.LargestExpense.Amount), k.LargestExpense.Date)
		}
		row(tw)
		row(tw, "MONTH", "INCOME", "EXPENSES", "NET")
		for _, p := range r.Cashflow.Monthly {
			row(tw, p.Month, money(p.Income), money(p.Expense), money(p.Net))
		}
		row(tw)
		row(tw, "CATEGORY", "TYPE", "TOTAL", "SHARE")
		for _, c := range r.ByCategory {
			row(tw, c.Emoji+" "+c.Name, c.Type, money(c.Total), percent(c.SharePct))
		}
	}
}
