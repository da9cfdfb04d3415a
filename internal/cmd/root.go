package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rbr",
		Short: "Terminal console for the RBR robot booking backend",
		Long: `rbr is the administrative console for the RBR backend.

Run without arguments to open the interactive console. Sign in with your
RBR account; what you can reach depends on your role. SCM Admins manage
user accounts from the Users screen.

The users subcommands perform the same operations without the interactive
console, for scripting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, false)
		},
	}

	root.PersistentFlags().String("config", "", "config file (default is $HOME/.rbr/config.yaml)")
	root.PersistentFlags().String("base-url", "", "backend API root, overrides base_url")

	root.AddCommand(
		newConsoleCmd(),
		newUsersCmd(),
		newRoutesCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
