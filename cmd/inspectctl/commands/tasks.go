package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"inspecta-backend/internal/client"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspection tasks",
	}
	cmd.AddCommand(tasksListCmd())
	return cmd
}

func tasksListCmd() *cobra.Command {
	var q client.TaskQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks (operators only see their own)",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := api.ListTasks(cmd.Context(), q)
			if err != nil {
				return err
			}

			tbl := newTable("ID", "TITLE", "STATUS", "PRIORITY", "STARTS", "RECURRENCE")
			for _, t := range page.Tasks {
				tbl.addRow(t.ID.String(), t.Title, t.Status, t.Priority, t.StartsAt.Local().Format(time.DateTime), t.Recurrence)
			}
			if err := tbl.render(cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(page.Tasks), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Status, "status", "", "planned, active, completed or cancelled")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "page offset")
	return cmd
}
