package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/rbr-console/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View console configuration",
		Long: `Show the console configuration stored at ~/.rbr/config.yaml.

Every setting can be overridden with an RBR_ environment variable, for
example RBR_BASE_URL, RBR_STRICT_ROLES or RBR_LOG_LEVEL.

Examples:
  # View the effective configuration
  rbr config view

  # Show the configuration file path
  rbr config path
`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "view",
		Short: "Display the effective configuration",
		Long:  `Display the configuration after defaults and environment overrides. The password is never shown.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd, false)
			if err != nil {
				return err
			}
			defer cc.Close() //nolint:errcheck

			data, err := cc.Config.YAML()
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", cc.Config.Path(), data) //nolint:errcheck
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path) //nolint:errcheck
			return nil
		},
	})

	return cmd
}
