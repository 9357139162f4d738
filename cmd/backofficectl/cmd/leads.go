package cmd

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xavierca1/firm-backoffice/internal/entity"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Browse contact, company setup and Beckham law leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		if !entity.LeadKind(kind).Valid() {
			return fmt.Errorf("unknown lead kind %q: want contact, company_setup or beckham_law", kind)
		}

		filters := url.Values{}
		for _, name := range []string{"status", "priority", "search"} {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				filters.Set(name, v)
			}
		}

		leads, err := newClient().ListLeads(kind, filters)
		if err != nil {
			return fmt.Errorf("listing leads: %w", err)
		}
		if len(leads) == 0 {
			cmd.Println("No leads found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTATUS\tPRIORITY\tCREATED")
		for _, l := range leads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, truncate(l.FullName, 30), l.Email, l.Status, l.Priority, l.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsListCmd)

	leadsListCmd.Flags().StringP("kind", "k", string(entity.LeadKindContact), "lead table: contact, company_setup or beckham_law")
	leadsListCmd.Flags().StringP("status", "s", "", "only leads in this status")
	leadsListCmd.Flags().String("priority", "", "only leads with this priority")
	leadsListCmd.Flags().String("search", "", "match name, email or company")
}
