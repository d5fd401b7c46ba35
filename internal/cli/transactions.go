package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pft/internal/apperr"
	"pft/internal/core"
)

func init() {
	rootCmd.AddCommand(txCmd)
	txCmd.AddCommand(txListCmd)
	txCmd.AddCommand(txAddCmd)
	txCmd.AddCommand(txEditCmd)
	txCmd.AddCommand(txRemoveCmd)

	f := txListCmd.Flags()
	f.String("start", "", "first date, YYYY-MM-DD")
	f.String("end", "", "last date, YYYY-MM-DD")
	f.String("category", "", "category id")
	f.String("type", "", "income or expense")
	f.StringP("query", "q", "", "search in titles")
	f.Int("limit", 0, "page size (server default 100)")
	f.Int("offset", 0, "rows to skip")

	for _, c := range []*cobra.Command{txAddCmd, txEditCmd} {
		f := c.Flags()
		f.StringP("title", "t", "", "title, 1 to 120 characters")
		f.StringP("amount", "a", "", "positive amount, e.g. 12.50")
		f.StringP("category", "c", "", "category id")
		f.StringP("date", "d", "", "date, YYYY-MM-DD")
		f.String("note", "", "optional note, up to 300 characters")
	}
}

var txCmd = &cobra.Command{
	Use:     "tx",
	Aliases: []string{"transactions"},
	Short:   "List and edit transactions",
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		var filter core.TransactionFilter
		filter.Start, _ = f.GetString("start")
		filter.End, _ = f.GetString("end")
		category, _ := f.GetString("category")
		filter.CategoryID = core.ID(category)
		typ, _ := f.GetString("type")
		filter.Type = core.TxType(typ)
		filter.Q, _ = f.GetString("query")
		filter.Limit, _ = f.GetInt("limit")
		filter.Offset, _ = f.GetInt("offset")

		txs, err := app.Finance.Transactions.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(txs, transactionTable(txs))
	},
}

var txAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a transaction",
	Long:  `Record a transaction. The type (income or expense) follows from the category.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		var in core.TransactionInput
		in.Title, _ = f.GetString("title")
		category, _ := f.GetString("category")
		in.CategoryID = core.ID(category)
		in.Date, _ = f.GetString("date")
		if in.Date == "" {
			in.Date = time.Now().Format(time.DateOnly)
		}
		rawAmount, _ := f.GetString("amount")
		amount, err := parseAmount(rawAmount)
		if err != nil {
			return err
		}
		in.Amount = amount
		if f.Changed("note") {
			note, _ := f.GetString("note")
			in.Note = &note
		}

		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		tx, err := app.Finance.Transactions.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(tx, transactionTable([]core.Transaction{tx}))
	},
}

var txEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change fields of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var patch core.TransactionPatch
		if f.Changed("title") {
			v, _ := f.GetString("title")
			patch.Title = &v
		}
		if f.Changed("amount") {
			v, _ := f.GetString("amount")
			amount, err := parseAmount(v)
			if err != nil {
				return err
			}
			patch.Amount = &amount
		}
		if f.Changed("category") {
			v, _ := f.GetString("category")
			id := core.ID(v)
			patch.CategoryID = &id
		}
		if f.Changed("date") {
			v, _ := f.GetString("date")
			patch.Date = &v
		}
		if f.Changed("note") {
			v, _ := f.GetString("note")
			patch.Note = &v
		}
		if patch == (core.TransactionPatch{}) {
			return fmt.Errorf("nothing to change: pass at least one of --title, --amount, --category, --date, --note")
		}

		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		tx, err := app.Finance.Transactions.Update(cmd.Context(), core.ID(args[0]), patch)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(tx, transactionTable([]core.Transaction{tx}))
	},
}

var txRemoveCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"delete"},
	Short:   "Delete a transaction",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := app.Finance.Transactions.Delete(cmd.Context(), core.ID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted transaction %s\n", args[0])
		return nil
	},
}

// parseAmount reads a decimal amount. An empty value is left zero so the
// input validation reports it alongside any other field problems.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Validation("parse", map[string]string{"amount": "must be a number"})
	}
	return d, nil
}
