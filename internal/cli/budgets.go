package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pft/internal/core"
)

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetListCmd)
	budgetCmd.AddCommand(budgetShowCmd)
	budgetCmd.AddCommand(budgetAddCmd)
	budgetCmd.AddCommand(budgetEditCmd)
	budgetCmd.AddCommand(budgetRemoveCmd)

	budgetListCmd.Flags().StringP("month", "m", "", "YYYY-MM, all months when empty")

	for _, c := range []*cobra.Command{budgetAddCmd, budgetEditCmd} {
		f := c.Flags()
		f.StringP("category", "c", "", "category id")
		f.StringP("limit", "l", "", "spending limit, zero or more")
		f.StringP("month", "m", "", "YYYY-MM")
		f.String("note", "", "optional note")
		f.Bool("notify", true, "warn when the limit is reached")
	}
}

var budgetCmd = &cobra.Command{
	Use:     "budget",
	Aliases: []string{"budgets"},
	Short:   "Manage monthly budgets",
}

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List budgets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		month, _ := cmd.Flags().GetString("month")
		if month != "" && !core.ValidMonth(month) {
			return fmt.Errorf("invalid month %q: use YYYY-MM", month)
		}
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		budgets, err := app.Finance.Budgets.List(cmd.Context(), month)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(budgets, budgetTable(budgets))
	},
}

var budgetShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		b, err := app.Finance.Budgets.Get(cmd.Context(), core.ID(args[0]))
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(b, budgetTable([]core.Budget{b}))
	},
}

var budgetAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a budget for a category and month",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		var in core.BudgetInput
		category, _ := f.GetString("category")
		in.CategoryID = core.ID(category)
		in.Month, _ = f.GetString("month")
		in.Note, _ = f.GetString("note")
		rawLimit, _ := f.GetString("limit")
		limit, err := parseAmount(rawLimit)
		if err != nil {
			return err
		}
		in.Limit = limit
		if f.Changed("notify") {
			notify, _ := f.GetBool("notify")
			in.Notify = &notify
		}

		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		b, err := app.Finance.Budgets.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(b, budgetTable([]core.Budget{b}))
	},
}

var budgetEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change fields of a budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var patch core.BudgetPatch
		if f.Changed("category") {
			v, _ := f.GetString("category")
			id := core.ID(v)
			patch.CategoryID = &id
		}
		if f.Changed("limit") {
			v, _ := f.GetString("limit")
			limit, err := parseAmount(v)
			if err != nil {
				return err
			}
			patch.Limit = &limit
		}
		if f.Changed("month") {
			v, _ := f.GetString("month")
			patch.Month = &v
		}
		if f.Changed("note") {
			v, _ := f.GetString("note")
			patch.Note = &v
		}
		if f.Changed("notify") {
			v, _ := f.GetBool("notify")
			patch.Notify = &v
		}
		if patch == (core.BudgetPatch{}) {
			return fmt.Errorf("nothing to change: pass at least one of --category, --limit, --month, --note, --notify")
		}

		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		b, err := app.Finance.Budgets.Update(cmd.Context(), core.ID(args[0]), patch)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(b, budgetTable([]core.Budget{b}))
	},
}

var budgetRemoveCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"delete"},
	Short:   "Delete a budget",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := app.Finance.Budgets.Delete(cmd.Context(), core.ID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted budget %s\n", args[0])
		return nil
	},
}
