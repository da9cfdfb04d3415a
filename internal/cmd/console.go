package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/rbr-console/internal/auth"
	"github.com/felixgeelhaar/rbr-console/internal/directory/directorytest"
	"github.com/felixgeelhaar/rbr-console/internal/navtrap"
	"github.com/felixgeelhaar/rbr-console/internal/route"
	"github.com/felixgeelhaar/rbr-console/internal/session"
	"github.com/felixgeelhaar/rbr-console/internal/tui"
	"github.com/felixgeelhaar/rbr-console/internal/users"
)

func newConsoleCmd() *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open the interactive console",
		Long: `Open the interactive console.

Keys:
  tab         switch between sidebar and content
  esc         back (inside the console this asks before signing you out)
  ctrl+c      quit

With --demo the console runs against a built-in backend seeded with one
account per role (password Passw0rd!):
  root@rbr.local        SCM Admin (protected)
  scm@rbr.local         SCM Admin
  engineer@rbr.local    Sales Engineer
  manager@rbr.local     Sales Manager
  management@rbr.local  Management`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, demo)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "run against a built-in demo backend")
	return cmd
}

func runConsole(cmd *cobra.Command, demo bool) error {
	if !tui.IsInteractive() {
		return fmt.Errorf("the console needs an interactive terminal; use 'rbr users' for scripting")
	}

	cc, err := NewCommandContext(cmd, true)
	if err != nil {
		return err
	}
	defer cc.Close() //nolint:errcheck

	baseURL := cc.Config.BaseURL
	label := baseURL
	if demo {
		srv, err := directorytest.NewServer()
		if err != nil {
			return fmt.Errorf("start demo backend: %w", err)
		}
		defer srv.Close()
		baseURL = srv.BaseURL()
		label = baseURL + " (demo, password Passw0rd!)"
	}

	sess := session.New()
	client := cc.Client(baseURL, sess)

	router, err := route.NewRouter(sess, route.PathRoot, route.Options{StrictRoles: cc.Config.StrictRoles})
	if err != nil {
		return err
	}
	trap := navtrap.New(router, sess)
	defer trap.Detach()

	workflow := users.New(client, cc.Logger)
	if err := workflow.SetPageSize(cc.Config.PageSize); err != nil {
		return err
	}

	m := tui.NewModel(tui.Options{
		Context:         cmd.Context(),
		Router:          router,
		Trap:            trap,
		Auth:            auth.NewAuthenticator(client, sess, cc.Logger),
		Session:         sess,
		Users:           workflow,
		Logger:          cc.Logger,
		NotificationTTL: cc.Config.NotificationTTL(),
		Backend:         label,
		Email:           cc.Config.Email,
	})

	cc.Logger.Info("console started", "backend", baseURL, "demo", demo, "strict_roles", cc.Config.StrictRoles)
	defer cc.Logger.Info("console stopped")
	return tui.Run(m)
}
