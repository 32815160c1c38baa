package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/client"
	"github.com/MrEthical07/authstate/internal/config"
	"github.com/MrEthical07/authstate/internal/logging"
	"github.com/MrEthical07/authstate/route"
	"github.com/MrEthical07/authstate/session"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	server     string
	statePath  string
	configPath string
	debug      bool
	logLevel   string
	logFormat  string
	timeout    time.Duration

	logger     *slog.Logger
	client     *client.Client
	store      *session.FileStore
	table      *route.Table
	authorizer *route.Authorizer
}

func defaultServer() string {
	if s := os.Getenv("AUTHSTATE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the authstate CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "authstate",
		Short: "Sign in to an authstate server and inspect the local session",
		Long: "authstate keeps a persistent session in a local state file. Commands " +
			"hydrate it, confirm it with the server and act on it.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.server, "server", defaultServer(), "authstate server URL (or AUTHSTATE_SERVER env)")
	pf.StringVar(&a.statePath, "state", "", "Session state file (default: user config dir)")
	pf.StringVar(&a.configPath, "config", "", "Server config file to read route rules from")
	pf.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")
	pf.DurationVar(&a.timeout, "timeout", 15*time.Second, "Per-request timeout")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newVisitCmd(a),
		newProfileCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.debug {
		a.logLevel = "debug"
	}
	a.logger = logging.NewLoggerWithWriter(logging.ParseLevel(a.logLevel), a.logFormat, os.Stderr)

	c, err := client.New(a.server, client.WithTimeout(a.timeout))
	if err != nil {
		return err
	}
	a.client = c

	if a.statePath == "" {
		p, err := session.DefaultFilePath()
		if err != nil {
			return fmt.Errorf("locate state file: %w", err)
		}
		a.statePath = p
	}
	a.store = session.NewFileStore(a.statePath, session.DefaultRetention)

	a.table = route.DefaultTable()
	a.authorizer = route.NewAuthorizer()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.table = cfg.RouteTable()
		a.authorizer = cfg.Authorizer()
	}
	return nil
}

// manager returns a Persistent manager over the state file. It is not
// initialized yet.
func (a *app) manager() *authstate.Manager {
	return authstate.NewManager(a.client, a.store,
		authstate.WithExecutionContext(authstate.Persistent),
		authstate.WithConfirmTimeout(a.timeout),
		authstate.WithLogger(a.logger),
	)
}

// confirmed initializes a manager and waits for the server to confirm the
// hydrated session.
func (a *app) confirmed(ctx context.Context) (*authstate.Manager, error) {
	m := a.manager()
	m.Initialize(ctx)
	select {
	case <-m.Confirmed():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return m, nil
}
