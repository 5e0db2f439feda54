// Package commands implements the inspectctl command tree.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inspecta-backend/internal/client"
)

var (
	server      string
	sessionPath string

	store *client.SessionStore
	api   *client.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:           "inspectctl",
		Short:         "Command-line client for the Inspecta inspection backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if sessionPath == "" {
				p, err := client.DefaultSessionPath()
				if err != nil {
					return err
				}
				sessionPath = p
			}
			store = client.NewSessionStore(sessionPath)
			api = client.New(server, store)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&server, "server", "", "backend base URL (default: the server of the stored session)")
	root.PersistentFlags().StringVar(&sessionPath, "session-file", "", "session file (default ~/.inspectctl/session.yaml)")

	root.AddCommand(loginCmd(), logoutCmd(), whoamiCmd(), tasksCmd(), checksCmd(), calendarCmd(), syncCmd())

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", explain(err))
	}
	return err
}

func explain(err error) string {
	switch {
	case errors.Is(err, client.ErrSessionExpired):
		return "your session has expired; run `inspectctl login` again"
	case errors.Is(err, client.ErrNotLoggedIn):
		return "not logged in; run `inspectctl login` first"
	default:
		return err.Error()
	}
}
