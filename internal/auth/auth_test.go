package auth

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rbr-console/internal/directory"
	"github.com/felixgeelhaar/rbr-console/internal/directory/directorytest"
	"github.com/felixgeelhaar/rbr-console/internal/role"
	"github.com/felixgeelhaar/rbr-console/internal/session"
)

type stubClient struct {
	resp  *directory.LoginResponse
	err   error
	calls int
}

func (s *stubClient) Login(_ context.Context, _ directory.Credentials) (*directory.LoginResponse, error) {
	s.calls++
	return s.resp, s.err
}

func roleName(s string) *string { return &s }

func TestLogin_Success(t *testing.T) {
	client := &stubClient{resp: &directory.LoginResponse{
		Tokens: directory.Tokens{Access: "A", Refresh: "R"},
		User:   directory.APIUser{ID: 7, RoleName: roleName("SCM Admin")},
	}}
	sess := session.New()
	a := NewAuthenticator(client, sess, nil)

	home, err := a.Login(context.Background(), "root@rbr.local", "secret")
	require.NoError(t, err)
	assert.Equal(t, "/users", home)

	snap := sess.Snapshot()
	assert.Equal(t, "A", snap.AccessToken)
	assert.Equal(t, "R", snap.RefreshToken)
	assert.Equal(t, role.ScmAdmin, snap.Role.Kind())
}

func TestLogin_UnknownRoleLandsOnInfo(t *testing.T) {
	client := &stubClient{resp: &directory.LoginResponse{
		Tokens: directory.Tokens{Access: "A"},
		User:   directory.APIUser{RoleName: roleName("Intern")},
	}}
	a := NewAuthenticator(client, session.New(), nil)

	home, err := a.Login(context.Background(), "x@rbr.local", "secret")
	require.NoError(t, err)
	assert.Equal(t, "/rbr-info", home)
}

func TestLogin_HardFailureLeavesSessionUntouched(t *testing.T) {
	client := &stubClient{err: stderrors.New("connection refused")}
	sess := session.New()
	a := NewAuthenticator(client, sess, nil)

	_, err := a.Login(context.Background(), "x@rbr.local", "secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Invalid email or password.", Message(err))
	assert.Equal(t, session.Snapshot{}, sess.Snapshot())
}

func TestLogin_MissingToken(t *testing.T) {
	client := &stubClient{resp: &directory.LoginResponse{
		Message: "Login successful",
		User:    directory.APIUser{RoleName: roleName("Management")},
	}}
	sess := session.New()
	a := NewAuthenticator(client, sess, nil)

	_, err := a.Login(context.Background(), "x@rbr.local", "secret")
	require.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, "Login succeeded but no token received.", Message(err))
	assert.False(t, sess.Authenticated())
}

func TestLogin_RequiredFields(t *testing.T) {
	client := &stubClient{}
	a := NewAuthenticator(client, session.New(), nil)

	_, err := a.Login(context.Background(), "  ", "")
	var fe *FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, RequiredMessage, fe.Email)
	assert.Equal(t, RequiredMessage, fe.Password)
	assert.Zero(t, client.calls)
}

func TestLogout(t *testing.T) {
	sess := session.New()
	sess.Set("A", "R", role.RoleManagement)
	NewAuthenticator(&stubClient{}, sess, nil).Logout()
	assert.Equal(t, session.Snapshot{}, sess.Snapshot())
}

func TestLogin_AgainstBackend(t *testing.T) {
	srv, err := directorytest.NewServer()
	require.NoError(t, err)
	defer srv.Close()

	sess := session.New()
	a := NewAuthenticator(directory.New(srv.BaseURL(), sess), sess, nil)

	_, err = a.Login(context.Background(), "engineer@rbr.local", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, sess.Authenticated())

	home, err := a.Login(context.Background(), "engineer@rbr.local", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "/booking-request", home)

	claims, err := sess.Claims()
	require.NoError(t, err)
	assert.Equal(t, "engineer@rbr.local", claims.Subject)
}
