package commands

import (
	"time"

	"github.com/spf13/cobra"

	"inspecta-backend/internal/client"
)

func checksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "Scheduled inspections",
	}
	cmd.AddCommand(checksListCmd())
	return cmd
}

func checksListCmd() *cobra.Command {
	var q client.CheckQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checks in a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks, err := api.ListChecks(cmd.Context(), q)
			if err != nil {
				return err
			}

			tbl := newTable("ID", "SCHEDULED", "TASK", "OBJECT", "STATUS")
			for _, c := range checks {
				tbl.addRow(c.ID.String(), c.ScheduledFor.Local().Format(time.DateTime), c.TaskTitle, c.ObjectName, c.Status)
			}
			return tbl.render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&q.From, "from", "", "window start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&q.To, "to", "", "window end, exclusive")
	cmd.Flags().StringVar(&q.Status, "status", "", "filter by status")
	return cmd
}
