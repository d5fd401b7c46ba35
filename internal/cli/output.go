package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pft/internal/core"
)

const (
	outputAuto  = "auto"
	outputTable = "table"
	outputJSON  = "json"
)

// printer writes either aligned tables or JSON.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(cmd *cobra.Command) *printer {
	return &printer{w: cmd.OutOrStdout(), json: wantJSON(flags.output, os.Stdout.Fd())}
}

// wantJSON picks JSON when asked to, or when auto and stdout is not a terminal.
func wantJSON(mode string, fd uintptr) bool {
	switch mode {
	case outputJSON:
		return true
	case outputTable:
		return false
	default:
		return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
}

// emit prints v as JSON, or calls table otherwise.
func (p *printer) emit(v any, table func(tw *tabwriter.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return humanize.FormatFloat("#,###.##", f)
}

func percent(p float64) string {
	return humanize.FtoaWithDigits(p, 1) + "%"
}

func optPercent(p *float64) string {
	if p == nil {
		return "-"
	}
	return percent(*p)
}

func signed(typ core.TxType, d decimal.Decimal) string {
	if typ == core.Expense {
		return "-" + money(d)
	}
	return money(d)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func transactionTable(txs []core.Transaction) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		row(tw, "ID", "DATE", "TITLE", "AMOUNT", "CATEGORY", "NOTE")
		for _, tx := range txs {
			row(tw, tx.ID, tx.Date, tx.Title, signed(tx.Type, tx.Amount), tx.CategoryID, deref(tx.Note))
		}
	}
}

func categoryTable(cats []core.Category) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		row(tw, "ID", "NAME", "TYPE", "COLOR", "EMOJI")
		for _, c := range cats {
			row(tw, c.ID, c.Name, c.Type, c.Color, c.Emoji)
		}
	}
}

func budgetTable(budgets []core.Budget) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		row(tw, "ID", "MONTH", "CATEGORY", "LIMIT", "NOTIFY", "NOTE")
		for _, b := range budgets {
			row(tw, b.ID, b.Month, b.CategoryID, money(b.Limit), b.Notify, b.Note)
		}
	}
}

func userTable(u core.User) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		row(tw, "ID", "NAME", "EMAIL")
		row(tw, u.ID, u.Name, u.Email)
	}
}
