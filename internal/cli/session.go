package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			m.Initialize(cmd.Context())
			if !m.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			// The local record is cleared even when the server call fails.
			if err := m.Logout(cmd.Context()); err != nil {
				a.logger.Warn("server logout failed", "error", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user after confirming with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.confirmed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			u := m.CurrentUser()
			if u == nil || !m.IsAuthenticated() {
				if cause := m.LastError(); cause != nil {
					fmt.Fprintf(out, "Not signed in (%v).\n", cause)
				} else {
					fmt.Fprintln(out, "Not signed in.")
				}
				return nil
			}
			fmt.Fprintf(out, "User:    %s (id %s)\n", u.Username, u.ID)
			fmt.Fprintf(out, "Roles:   %s\n", u.Roles.String())
			if u.Avatar != "" {
				fmt.Fprintf(out, "Avatar:  %s\n", u.Avatar)
			}
			fmt.Fprintf(out, "Expires: %s\n", m.ExpiresAt().Local().Format(time.RFC1123))
			fmt.Fprintf(out, "Landing: %s\n", a.authorizer.LandingFor(u.Roles))
			return nil
		},
	}
}
