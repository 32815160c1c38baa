package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authstate"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		username      string
		passwordStdin bool
		expiresIn     string
		remember      bool
		keepName      bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			m := a.manager()
			m.Initialize(cmd.Context())

			if username == "" {
				if prev, err := m.RememberedUsername(cmd.Context()); err == nil && prev != "" && passwordStdin {
					username = prev
				} else {
					fmt.Fprint(out, "Username: ")
					line, err := in.ReadString('\n')
					if err != nil && line == "" {
						return fmt.Errorf("read username: %w", err)
					}
					username = strings.TrimSpace(line)
				}
			}
			if !passwordStdin {
				fmt.Fprint(out, "Password: ")
			}
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")

			d, err := authstate.ParseRequestedDuration(expiresIn)
			if err != nil {
				return err
			}

			u, err := m.Login(cmd.Context(), authstate.Credentials{
				Username:          username,
				Password:          password,
				RequestedDuration: d,
				RememberMe:        remember,
				RememberUsername:  keepName,
			})
			if err != nil {
				return loginError(err)
			}
			fmt.Fprintf(out, "Signed in as %s (%s), session expires %s\n",
				u.Username, u.Roles.String(), m.ExpiresAt().Local().Format(time.RFC1123))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin without prompting")
	cmd.Flags().StringVar(&expiresIn, "expires-in", "", "Requested session lifetime in seconds or as a Go duration")
	cmd.Flags().BoolVar(&remember, "remember-me", false, "Ask for the long remember-me lifetime")
	cmd.Flags().BoolVar(&keepName, "remember-username", false, "Prefill this username next time")
	return cmd
}

func loginError(err error) error {
	switch {
	case errors.Is(err, authstate.ErrInvalidCredentials):
		return errors.New("login failed: invalid username or password")
	case errors.Is(err, authstate.ErrLoginRateLimited):
		return errors.New("login failed: too many attempts, try again later")
	case errors.Is(err, authstate.ErrNetworkFailure):
		return fmt.Errorf("login failed: server unreachable: %w", err)
	default:
		return fmt.Errorf("login failed: %w", err)
	}
}
