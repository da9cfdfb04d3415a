package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rbr-console/internal/directory/directorytest"
	"github.com/felixgeelhaar/rbr-console/internal/errors"
)

type staticToken string

func (s staticToken) AccessToken() (string, bool) { return string(s), s != "" }

func newBackend(t *testing.T) *directorytest.Server {
	t.Helper()
	srv, err := directorytest.NewServer()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func adminClient(t *testing.T, srv *directorytest.Server) *Client {
	t.Helper()
	resp, err := New(srv.BaseURL(), nil).Login(context.Background(), Credentials{Email: "root@rbr.local", Password: "Passw0rd!"})
	require.NoError(t, err)
	return New(srv.BaseURL(), staticToken(resp.Tokens.Access), WithUserAgent("rbr-console/test"))
}

func TestClient_Login(t *testing.T) {
	srv := newBackend(t)
	c := New(srv.BaseURL(), nil)

	resp, err := c.Login(context.Background(), Credentials{Email: "manager@rbr.local", Password: "Passw0rd!"})
	require.NoError(t, err)
	assert.Equal(t, "Login successful", resp.Message)
	assert.NotEmpty(t, resp.Tokens.Access)
	assert.Equal(t, "Sales Manager", resp.User.Role())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestClient_LoginRejected(t *testing.T) {
	srv := newBackend(t)
	c := New(srv.BaseURL(), nil)

	_, err := c.Login(context.Background(), Credentials{Email: "manager@rbr.local", Password: "nope"})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password.", apiErr.Message)
}

func TestClient_AttachesBearerAndRequestID(t *testing.T) {
	srv := newBackend(t)
	c := adminClient(t, srv)
	srv.ResetRequests()

	_, err := c.List(context.Background())
	require.NoError(t, err)
	_, err = c.List(context.Background())
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Regexp(t, `^Bearer .+`, reqs[0].Authorization)
	assert.NotEqual(t, reqs[0].RequestID, reqs[1].RequestID)
}

func TestClient_UserCRUD(t *testing.T) {
	srv := newBackend(t)
	c := adminClient(t, srv)
	ctx := context.Background()

	before, err := c.List(ctx)
	require.NoError(t, err)

	created, err := c.Create(ctx, CreateRequest{
		Name: "New Person", Email: "new@rbr.local", Role: "Management", Password: "Abc$1234", IsActive: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	after, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
	assert.Equal(t, created.ID, after[0].ID, "newest first")

	name := "Renamed"
	updated, err := c.Update(ctx, created.ID, UpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	last := srv.Requests()[len(srv.Requests())-1]
	assert.Equal(t, map[string]any{"name": "Renamed"}, last.Body, "nil fields are omitted")

	require.NoError(t, c.SetActive(ctx, created.ID, false))
	last = srv.Requests()[len(srv.Requests())-1]
	assert.Equal(t, map[string]any{"is_active": false}, last.Body)
	u, _ := srv.User(created.ID)
	assert.Equal(t, false, u["is_active"])

	require.NoError(t, c.Delete(ctx, created.ID))
	_, ok := srv.User(created.ID)
	assert.False(t, ok)
}

func TestClient_ServerErrorsAreRequestFailures(t *testing.T) {
	srv := newBackend(t)
	c := adminClient(t, srv)

	srv.FailNext(http.MethodGet, http.StatusInternalServerError)
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRequestFailed, errors.CodeOf(err))
	assert.False(t, IsUnauthorized(err))
}

func TestClient_NoSessionIsUnauthorized(t *testing.T) {
	srv := newBackend(t)
	c := New(srv.BaseURL(), staticToken(""))

	_, err := c.List(context.Background())
	assert.True(t, IsUnauthorized(err))
}

func TestClient_TransportFailure(t *testing.T) {
	c := New("http://127.0.0.1:1/api", nil)
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRequestFailed, errors.CodeOf(err))
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI)
}

func TestParseError_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail":"Not found."}`, "Not found."},
		{"error", `{"error":"bad gateway"}`, "bad gateway"},
		{"fields", `{"name":["required"],"email":["taken","invalid"]}`, "email: taken invalid; name: required"},
		{"raw", `upstream down`, "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(http.StatusBadRequest)
			_, _ = rec.WriteString(tt.body)

			apiErr := parseError(rec.Result(), "rid")
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, "rid", apiErr.RequestID)
		})
	}
}

func TestUpdateRequest_Empty(t *testing.T) {
	assert.True(t, UpdateRequest{}.Empty())
	active := false
	assert.False(t, UpdateRequest{IsActive: &active}.Empty())
}
