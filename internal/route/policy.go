// Package route maps roles to destinations and guards every transition
// between the console's screens.
package route

import "github.com/felixgeelhaar/rbr-console/internal/role"

// Paths of every screen the console can show.
const (
	PathRoot        = "/"
	PathLogin       = "/login"
	PathUsers       = "/users"
	PathUsersCreate = "/users/create"
	PathBooking     = "/booking-request"
	PathApprovals   = "/approvals"
	PathAllocation  = "/allocation"
	PathInfo        = "/rbr-info"
	PathReports     = "/reports"
	PathSettings    = "/settings"
	PathInventory   = "/inventory"
)

// HomeFor returns the landing path for a role. It is total: the absent role
// goes to login and any unrecognized role goes to the shared info page.
func HomeFor(r role.Role) string {
	switch r.Kind() {
	case role.ScmAdmin:
		return PathUsers
	case role.SalesEngineer:
		return PathBooking
	case role.SalesManager:
		return PathApprovals
	case role.Management:
		return PathReports
	case role.None:
		return PathLogin
	default:
		return PathInfo
	}
}

// HomeForName parses a backend role name and returns its landing path.
func HomeForName(name string) string {
	return HomeFor(role.Parse(name))
}

// Item is one sidebar entry.
type Item struct {
	Label   string
	Path    string
	Icon    string
	Allowed []role.Kind
}

// Permits reports whether r may see this entry.
func (it Item) Permits(r role.Role) bool {
	for _, k := range it.Allowed {
		if k == r.Kind() {
			return true
		}
	}
	return false
}

var everyone = []role.Kind{role.SalesEngineer, role.SalesManager, role.ScmAdmin, role.Management}

var navigation = []Item{
	{Label: "Robot Booking", Path: PathBooking, Icon: "⚙", Allowed: []role.Kind{role.SalesEngineer, role.ScmAdmin}},
	{Label: "Approvals", Path: PathApprovals, Icon: "✔", Allowed: []role.Kind{role.SalesManager}},
	{Label: "Allocation", Path: PathAllocation, Icon: "⇄", Allowed: []role.Kind{role.ScmAdmin}},
	{Label: "RBR Info", Path: PathInfo, Icon: "ℹ", Allowed: everyone},
	{Label: "Inventory", Path: PathInventory, Icon: "▤", Allowed: []role.Kind{role.ScmAdmin}},
	{Label: "Reports", Path: PathReports, Icon: "▦", Allowed: []role.Kind{role.ScmAdmin, role.Management}},
	{Label: "Users", Path: PathUsers, Icon: "☺", Allowed: []role.Kind{role.ScmAdmin}},
}

// Navigation returns the sidebar entries visible to r, in display order.
// Unknown and absent roles see nothing.
func Navigation(r role.Role) []Item {
	var out []Item
	for _, it := range navigation {
		if it.Permits(r) {
			out = append(out, it)
		}
	}
	return out
}

// Allows reports whether a sidebar entry grants r the path. Paths without a
// sidebar entry are never granted.
func Allows(r role.Role, path string) bool {
	p := Clean(path)
	for _, it := range navigation {
		if it.Path == p {
			return it.Permits(r)
		}
	}
	return false
}

// hasItem reports whether any sidebar entry owns the path.
func hasItem(path string) bool {
	for _, it := range navigation {
		if it.Path == path {
			return true
		}
	}
	return false
}
