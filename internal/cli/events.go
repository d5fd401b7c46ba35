package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pft/internal/events"
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)

	eventsTailCmd.Flags().StringP("binding", "b", "#", "routing key pattern, e.g. budgets.* or *.delete")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Mutation events published to the message broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print settled mutations as they are published",
	Long: `Follow the mutation events exchange. Requires PFT_AMQP_URL. Each line is
one settled create, update or delete and whether it succeeded or was rolled
back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := state.cfg
		if cfg.AMQPURL == "" {
			return errors.New("no broker configured: set PFT_AMQP_URL")
		}
		binding, _ := cmd.Flags().GetString("binding")

		c := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, state.logger)
		defer c.Close()

		out := cmd.OutOrStdout()
		err := c.Consume(cmd.Context(), binding, func(ev *events.MutationEvent) error {
			_, err := fmt.Fprintln(out, formatEvent(ev))
			return err
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func formatEvent(ev *events.MutationEvent) string {
	line := fmt.Sprintf("%-8s %-20s id=%s", ev.Outcome, ev.RoutingKey(), ev.ID)
	if ev.TempID != "" {
		line += " temp=" + ev.TempID.String()
	}
	if ev.Error != "" {
		line += " error=" + fmt.Sprintf("%q", ev.Error)
	}
	return line + " (" + humanize.Time(ev.Timestamp) + ")"
}
