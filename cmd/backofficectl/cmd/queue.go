package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/firm-backoffice/internal/entity"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and repair the blog and news generation queues",
}

func queueKindArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if !entity.QueueKind(args[0]).Valid() {
		return fmt.Errorf("unknown queue %q: want blog or news", args[0])
	}
	return nil
}

var queueDiagnosticsCmd = &cobra.Command{
	Use:   "diagnostics [blog|news]",
	Short: "Show item counts per status and the items considered stuck",
	Args:  queueKindArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newClient().QueueDiagnostics(args[0])
		if err != nil {
			return fmt.Errorf("fetching diagnostics: %w", err)
		}

		cmd.Printf("Queue %s, %d item(s), checked %s\n", d.Queue, d.Total, d.CheckedAt.Format(time.RFC3339))

		statuses := make([]string, 0, len(d.Counts))
		for s := range d.Counts {
			statuses = append(statuses, string(s))
		}
		sort.Strings(statuses)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "STATUS\tCOUNT")
		for _, s := range statuses {
			fmt.Fprintf(w, "%s\t%d\n", s, d.Counts[entity.QueueStatus(s)])
		}
		w.Flush()

		if len(d.Stuck) == 0 {
			cmd.Println("No stuck items.")
			return nil
		}

		cmd.Printf("\nStuck items (threshold %s):\n", d.StuckThreshold)
		w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTOPIC\tATTEMPTS\tUPDATED AT\tLEASE OWNER")
		for _, item := range d.Stuck {
			owner := "-"
			if item.LeaseOwner != nil {
				owner = *item.LeaseOwner
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", item.ID, truncate(item.Topic, 40), item.Attempts,
				item.UpdatedAt.Format(time.RFC3339), owner)
		}
		w.Flush()
		return nil
	},
}

var queueResetStuckCmd = &cobra.Command{
	Use:   "reset-stuck [blog|news]",
	Short: "Hand items stuck in generating back to pending",
	Args:  queueKindArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().ResetStuck(args[0])
		if err != nil {
			return fmt.Errorf("resetting stuck items: %w", err)
		}
		cmd.Printf("Reset %d stuck item(s) in the %s queue.\n", resp.Affected, resp.Queue)
		return nil
	},
}

var queueRetryFailedCmd = &cobra.Command{
	Use:   "retry-failed [blog|news]",
	Short: "Move every failed item back to pending",
	Args:  queueKindArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().RetryFailed(args[0])
		if err != nil {
			return fmt.Errorf("retrying failed items: %w", err)
		}
		cmd.Printf("Requeued %d failed item(s) in the %s queue.\n", resp.Affected, resp.Queue)
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueDiagnosticsCmd)
	queueCmd.AddCommand(queueResetStuckCmd)
	queueCmd.AddCommand(queueRetryFailedCmd)
}
