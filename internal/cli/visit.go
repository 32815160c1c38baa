package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authstate/route"
)

func newVisitCmd(a *app) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "visit <path>",
		Short: "Show what the route rules decide for the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := args[0]
			m, err := a.confirmed(cmd.Context())
			if err != nil {
				return err
			}
			d := a.authorizer.Authorize(cmd.Context(),
				route.Navigation{To: to, From: from},
				a.table.Lookup(to),
				m,
			)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", d.Kind, to)
			if d.Location != "" {
				fmt.Fprintf(out, "  location: %s\n", d.Location)
			}
			if d.Reason != "" {
				fmt.Fprintf(out, "  reason:   %s\n", d.Reason)
			}
			if d.Kind == route.Forbidden {
				fmt.Fprintf(out, "  fallback: %s\n", a.authorizer.LandingFor(m.CurrentRoles()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Path the navigation starts from")
	return cmd
}
