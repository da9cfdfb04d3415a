package directory

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Tokens is the token pair issued on login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// LoginResponse is the login response body.
type LoginResponse struct {
	Message string  `json:"message"`
	Tokens  Tokens  `json:"tokens"`
	User    APIUser `json:"user"`
}

// APIUser is a user as the backend serializes it.
type APIUser struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	RoleName    *string `json:"role_name"`
	IsActive    bool    `json:"is_active"`
	IsSuperuser bool    `json:"is_superuser"`
}

// Role returns the role name or "" when the backend sent none.
func (u APIUser) Role() string {
	if u.RoleName == nil {
		return ""
	}
	return *u.RoleName
}

// CreateRequest is the body for creating a user.
type CreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
	IsActive bool   `json:"is_active"`
}

// UpdateRequest is a partial update. Nil fields are left out of the body
// and keep their current value on the backend.
type UpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`
	Password *string `json:"password,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u UpdateRequest) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Role == nil && u.Password == nil && u.IsActive == nil
}
