package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pft/internal/core"
)

func init() {
	rootCmd.AddCommand(categoryCmd)
	categoryCmd.AddCommand(categoryListCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryRemoveCmd)

	f := categoryAddCmd.Flags()
	f.StringP("name", "n", "", "category name")
	f.StringP("type", "t", string(core.Expense), "income or expense")
	f.String("color", "#64748b", "color, #RGB or #RRGGBB")
	f.String("emoji", "", "emoji shown next to the name")
}

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"categories", "cat"},
	Short:   "Manage categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		cats, err := app.Finance.Categories.List(cmd.Context())
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(cats, categoryTable(cats))
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		var in core.CategoryInput
		in.Name, _ = f.GetString("name")
		typ, _ := f.GetString("type")
		in.Type = core.TxType(typ)
		in.Color, _ = f.GetString("color")
		in.Emoji, _ = f.GetString("emoji")

		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		c, err := app.Finance.Categories.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(c, categoryTable([]core.Category{c}))
	},
}

var categoryRemoveCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"delete"},
	Short:   "Delete a category",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := app.Finance.Categories.Delete(cmd.Context(), core.ID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
		return nil
	},
}
