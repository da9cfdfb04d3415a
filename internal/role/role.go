// Package role defines the closed set of roles an authenticated user can hold.
//
// The backend sends roles as free-form display strings. Parse maps every
// input, including empty and unrecognized strings, onto a Role value so
// callers never have to handle a parse error.
package role

import "strings"

// Kind identifies a role variant.
type Kind int

const (
	// None means no role is known (no session, or the backend sent nothing).
	None Kind = iota
	// SalesEngineer requests robot bookings.
	SalesEngineer
	// SalesManager approves booking requests.
	SalesManager
	// ScmAdmin administers users, allocation and inventory.
	ScmAdmin
	// Management reads reports.
	Management
	// Unknown is any non-empty role name this client does not recognize.
	Unknown
)

// Wire names used by the backend.
const (
	NameSalesEngineer = "Sales Engineer"
	NameSalesManager  = "Sales Manager"
	NameScmAdmin      = "SCM Admin"
	NameManagement    = "Management"
)

// Role is a parsed role. The zero value is the absent role.
type Role struct {
	kind Kind
	raw  string
}

// Known roles, in the order the user form offers them.
var (
	RoleSalesEngineer = Role{kind: SalesEngineer, raw: NameSalesEngineer}
	RoleSalesManager  = Role{kind: SalesManager, raw: NameSalesManager}
	RoleScmAdmin      = Role{kind: ScmAdmin, raw: NameScmAdmin}
	RoleManagement    = Role{kind: Management, raw: NameManagement}
)

// All returns the four known roles.
func All() []Role {
	return []Role{RoleSalesEngineer, RoleSalesManager, RoleScmAdmin, RoleManagement}
}

// Names returns the wire names of the known roles.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, r := range all {
		out[i] = r.raw
	}
	return out
}

// Parse maps a backend role name onto a Role. It never fails: blank input
// yields the absent role and unrecognized input yields an Unknown role that
// keeps the original text.
func Parse(name string) Role {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Role{}
	}
	for _, r := range All() {
		if r.raw == trimmed {
			return r
		}
	}
	return Role{kind: Unknown, raw: trimmed}
}

// Kind returns the role variant.
func (r Role) Kind() Kind { return r.kind }

// IsZero reports whether the role is absent.
func (r Role) IsZero() bool { return r.kind == None }

// Known reports whether the role is one of the four recognized roles.
func (r Role) Known() bool {
	return r.kind != None && r.kind != Unknown
}

// String returns the wire name, or the original text for unknown roles.
func (r Role) String() string { return r.raw }

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case SalesEngineer:
		return "sales_engineer"
	case SalesManager:
		return "sales_manager"
	case ScmAdmin:
		return "scm_admin"
	case Management:
		return "management"
	default:
		return "unknown"
	}
}
