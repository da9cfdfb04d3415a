// Package users implements the user-management workflow: a paginated
// snapshot of the remote directory, create/edit/delete dialogs, and an
// optimistic active-status toggle that resyncs on failure.
package users

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/rbr-console/internal/directory"
)

// NoRole is displayed for users the backend reports without a role.
const NoRole = "No Role"

// Record is a user as the workflow presents it.
type Record struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	Protected bool   `json:"protected"`
}

// Normalize shapes a backend user for display. Superusers become
// protected records.
func Normalize(u directory.APIUser) Record {
	roleName := strings.TrimSpace(u.Role())
	if roleName == "" {
		roleName = NoRole
	}
	return Record{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      roleName,
		Active:    u.IsActive,
		Protected: u.IsSuperuser,
	}
}

// Status returns the label for the record's active flag.
func (r Record) Status() string {
	if r.Active {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// Directory is the remote user directory the workflow drives.
type Directory interface {
	List(ctx context.Context) ([]directory.APIUser, error)
	Create(ctx context.Context, req directory.CreateRequest) (*directory.APIUser, error)
	Update(ctx context.Context, id int64, req directory.UpdateRequest) (*directory.APIUser, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
