package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authstate/session"
)

func newProfileCmd(a *app) *cobra.Command {
	var username, avatar string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change the signed-in user's name or avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch session.Patch
			if cmd.Flags().Changed("username") {
				patch.Username = &username
			}
			if cmd.Flags().Changed("avatar") {
				patch.Avatar = &avatar
			}
			if patch.Empty() {
				return errors.New("nothing to update: pass --username or --avatar")
			}

			m, err := a.confirmed(cmd.Context())
			if err != nil {
				return err
			}
			u, err := m.UpdateProfile(cmd.Context(), patch)
			if err != nil {
				return fmt.Errorf("update profile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated: %s avatar=%q\n", u.Username, u.Avatar)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "New username")
	cmd.Flags().StringVar(&avatar, "avatar", "", "New avatar reference")
	return cmd
}
