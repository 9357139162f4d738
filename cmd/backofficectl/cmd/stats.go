package cmd

import (
	"fmt"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [domain]",
	Short: "Grouped counts or sums for a domain, e.g. leads/contact or payroll",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupBy, _ := cmd.Flags().GetString("group-by")
		sum, _ := cmd.Flags().GetString("sum")
		rawFilters, _ := cmd.Flags().GetStringSlice("filter")

		filters := url.Values{}
		for _, f := range rawFilters {
			k, v, ok := strings.Cut(f, "=")
			if !ok {
				return fmt.Errorf("invalid filter %q: want key=value", f)
			}
			filters.Add(k, v)
		}

		resp, err := newClient().Stats(args[0], groupBy, sum, filters)
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}

		if len(resp.Buckets) == 0 {
			cmd.Println("No rows matched.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		if sum != "" {
			fmt.Fprintf(w, "%s\tCOUNT\tSUM(%s)\n", strings.ToUpper(groupBy), sum)
		} else {
			fmt.Fprintf(w, "%s\tCOUNT\n", strings.ToUpper(groupBy))
		}
		total := 0
		for _, b := range resp.Buckets {
			key := b.Key
			if key == "" {
				key = "(none)"
			}
			if sum != "" {
				fmt.Fprintf(w, "%s\t%d\t%.2f\n", key, b.Count, b.Sum)
			} else {
				fmt.Fprintf(w, "%s\t%d\n", key, b.Count)
			}
			total += b.Count
		}
		fmt.Fprintf(w, "TOTAL\t%d\n", total)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().String("group-by", "status", "column to group by")
	statsCmd.Flags().String("sum", "", "numeric column to sum per group")
	statsCmd.Flags().StringSliceP("filter", "f", nil, "filter as key=value, repeatable")
}
