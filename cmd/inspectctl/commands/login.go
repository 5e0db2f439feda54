package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	var domain, username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session and store it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				return errors.New("--server is required for login")
			}
			resp, err := api.Login(cmd.Context(), domain, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s (session valid until %s)\n",
				resp.Domain, username, resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "domain code")
	cmd.Flags().StringVar(&username, "username", "", "user name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("domain")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user behind the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s@%s\n", me.User.Username, me.Domain)
			if me.User.FullName != "" {
				fmt.Fprintf(out, "name: %s\n", me.User.FullName)
			}
			fmt.Fprintf(out, "role: %s\n", me.User.Role)
			return nil
		},
	}
}
