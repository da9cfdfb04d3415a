package directory

import (
	"context"
	"fmt"
	"net/http"
)

const usersPath = "/users/"

// Login exchanges credentials for a token pair. It does not require a
// session.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login/", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List fetches the full user list.
func (c *Client) List(ctx context.Context) ([]APIUser, error) {
	var users []APIUser
	if err := c.do(ctx, http.MethodGet, usersPath, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Create adds a user.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*APIUser, error) {
	var user APIUser
	if err := c.do(ctx, http.MethodPost, usersPath, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies a partial update to the user with the given id.
func (c *Client) Update(ctx context.Context, id int64, req UpdateRequest) (*APIUser, error) {
	var user APIUser
	if err := c.do(ctx, http.MethodPatch, userPath(id), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetActive sets only the active flag of the user with the given id.
func (c *Client) SetActive(ctx context.Context, id int64, active bool) error {
	return c.do(ctx, http.MethodPatch, userPath(id), UpdateRequest{IsActive: &active}, nil)
}

// Delete removes the user with the given id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, nil)
}

func userPath(id int64) string {
	return fmt.Sprintf("%s%d/", usersPath, id)
}
