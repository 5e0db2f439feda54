package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func calendarCmd() *cobra.Command {
	var from, to, tz string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show checks grouped by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := api.Calendar(cmd.Context(), from, to, tz)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, day := range days {
				if len(day.Checks) == 0 {
					fmt.Fprintf(out, "%s  -\n", day.Date)
					continue
				}

				statuses := make([]string, 0, len(day.Counts))
				for status := range day.Counts {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				parts := make([]string, 0, len(statuses))
				for _, status := range statuses {
					parts = append(parts, fmt.Sprintf("%s=%d", status, day.Counts[status]))
				}
				fmt.Fprintf(out, "%s  %s\n", day.Date, strings.Join(parts, " "))

				for _, c := range day.Checks {
					fmt.Fprintf(out, "    %s  %-11s %s / %s\n", c.ScheduledFor.Format("15:04"), c.Status, c.TaskTitle, c.ObjectName)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "day after the last one (YYYY-MM-DD)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for day boundaries (default UTC)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}
