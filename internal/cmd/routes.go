package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/rbr-console/internal/role"
	"github.com/felixgeelhaar/rbr-console/internal/route"
)

// roleRoutes is the JSON shape of one role's routes.
type roleRoutes struct {
	Role       string     `json:"role"`
	Home       string     `json:"home"`
	Navigation []navEntry `json:"navigation"`
}

type navEntry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

func newRoutesCmd() *cobra.Command {
	var (
		roleName string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the home screen and sidebar for a role",
		Long: `Show where a role lands after login and which sidebar entries it sees.
Without --role every known role is listed.

Examples:
  rbr routes --role "Sales Manager"
  rbr routes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles := role.All()
			if cmd.Flags().Changed("role") {
				roles = []role.Role{role.Parse(roleName)}
			}

			out := make([]roleRoutes, len(roles))
			for i, r := range roles {
				out[i] = routesFor(r)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printRoutes(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "role name as sent by the backend")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func routesFor(r role.Role) roleRoutes {
	rr := roleRoutes{
		Role:       r.String(),
		Home:       route.HomeFor(r),
		Navigation: []navEntry{},
	}
	if rr.Role == "" {
		rr.Role = "(none)"
	}
	for _, it := range route.Navigation(r) {
		rr.Navigation = append(rr.Navigation, navEntry{Label: it.Label, Path: it.Path})
	}
	return rr
}

func printRoutes(w io.Writer, all []roleRoutes) {
	for i, rr := range all {
		if i > 0 {
			fmt.Fprintln(w) //nolint:errcheck
		}
		fmt.Fprintf(w, "Role: %s\nHome: %s\n", rr.Role, rr.Home) //nolint:errcheck
		if len(rr.Navigation) == 0 {
			fmt.Fprintln(w, "Navigation: none") //nolint:errcheck
			continue
		}
		fmt.Fprintln(w, "Navigation:") //nolint:errcheck
		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		for _, n := range rr.Navigation {
			fmt.Fprintf(tw, "  %s\t%s\n", n.Label, n.Path) //nolint:errcheck
		}
		tw.Flush() //nolint:errcheck
	}
}
