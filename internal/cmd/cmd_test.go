package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/rbr-console/internal/directory/directorytest"
	"github.com/felixgeelhaar/rbr-console/internal/exitcode"
	"github.com/felixgeelhaar/rbr-console/internal/users"
	"github.com/felixgeelhaar/rbr-console/internal/version"
)

// isolate clears RBR_* settings and disables prompts.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"RBR_EMAIL", "RBR_PASSWORD", "RBR_BASE_URL", "RBR_PAGE_SIZE", "RBR_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("CI", "true")
	return filepath.Join(t.TempDir(), "config.yaml")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := isolate(t)

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newBackend(t *testing.T) *directorytest.Server {
	t.Helper()
	srv, err := directorytest.NewServer()
	if err != nil {
		t.Fatalf("failed to start backend: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func asAdmin(srv *directorytest.Server, args ...string) []string {
	return append([]string{"--base-url", srv.BaseURL()}, append(args, "--email", "scm@rbr.local", "--password", "Passw0rd!")...)
}

func TestRootSubcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"console": false, "users": false, "routes": false, "config": false, "version": false}

	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand '%s' not found on root command", name)
		}
	}
}

func TestUsersSubcommands(t *testing.T) {
	cmd := newUsersCmd()
	want := map[string]bool{"list": false, "create": false, "update": false, "toggle": false, "delete": false}

	for _, c := range cmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand '%s' not found on users command", name)
		}
	}
	if cmd.PersistentFlags().Lookup("email") == nil || cmd.PersistentFlags().Lookup("password") == nil {
		t.Error("users command should carry --email and --password")
	}
}

func TestUsersList(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, asAdmin(srv, "users", "list")...)
	if err != nil {
		t.Fatalf("users list failed: %v", err)
	}

	for _, email := range []string{"root@rbr.local", "scm@rbr.local", "engineer@rbr.local", "manager@rbr.local", "management@rbr.local"} {
		if !strings.Contains(out, email) {
			t.Errorf("expected %s in output:\n%s", email, out)
		}
	}
	if strings.Index(out, "management@rbr.local") > strings.Index(out, "root@rbr.local") {
		t.Error("expected newest users first")
	}
}

func TestUsersList_JSONPage(t *testing.T) {
	srv := newBackend(t)
	for i := 0; i < 3; i++ {
		_, err := execute(t, asAdmin(srv, "users", "create", "Extra User", "extra"+string(rune('a'+i))+"@rbr.local",
			"--role", "Sales Engineer", "--new-password", "Str0ng!pass")...)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	out, err := execute(t, asAdmin(srv, "users", "list", "--json", "--page", "2")...)
	if err != nil {
		t.Fatalf("users list failed: %v", err)
	}

	var records []users.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	// 8 users at 6 per page leaves 2 on the second page.
	if len(records) != 2 {
		t.Fatalf("expected 2 records on page 2, got %d", len(records))
	}
	if records[1].Email != "root@rbr.local" || !records[1].Protected {
		t.Errorf("expected the protected root user last, got %+v", records[1])
	}
}

func TestUsers_WrongPassword(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, "--base-url", srv.BaseURL(), "users", "list", "--email", "scm@rbr.local", "--password", "nope")
	if err == nil {
		t.Fatal("expected login failure")
	}
	if code := exitcode.DetermineExitCode(err); code != exitcode.AuthError {
		t.Errorf("exit code = %d, want %d", code, exitcode.AuthError)
	}
	if !strings.Contains(err.Error(), "Invalid email or password.") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUsers_MissingCredentials(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, "--base-url", srv.BaseURL(), "users", "list")
	if err == nil {
		t.Fatal("expected missing credentials error")
	}
	if code := exitcode.DetermineExitCode(err); code != exitcode.AuthError {
		t.Errorf("exit code = %d, want %d", code, exitcode.AuthError)
	}
	if n := srv.Count(http.MethodPost); n != 0 {
		t.Errorf("expected no login request, got %d", n)
	}
}

func TestUsers_NonAdminForbidden(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, "--base-url", srv.BaseURL(), "users", "list", "--email", "engineer@rbr.local", "--password", "Passw0rd!")
	if err == nil {
		t.Fatal("expected the list to be refused")
	}
	if code := exitcode.DetermineExitCode(err); code != exitcode.AuthError {
		t.Errorf("exit code = %d, want %d", code, exitcode.AuthError)
	}
}

func TestUsersCreate(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, asAdmin(srv, "users", "create", "Ada Lovelace", "ada@rbr.local",
		"--role", "Sales Manager", "--new-password", "S3cure!pw", "--inactive")...)
	if err != nil {
		t.Fatalf("users create failed: %v", err)
	}
	if !strings.Contains(out, users.MsgCreated) {
		t.Errorf("expected %q, got %q", users.MsgCreated, out)
	}

	id, ok := srv.IDByEmail("ada@rbr.local")
	if !ok {
		t.Fatal("expected the user on the backend")
	}
	u, _ := srv.User(id)
	if u["is_active"] != false {
		t.Errorf("expected the user inactive, got %v", u["is_active"])
	}
}

func TestUsersCreate_WeakPasswordRejectedLocally(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, asAdmin(srv, "users", "create", "Weak", "weak@rbr.local",
		"--role", "Sales Engineer", "--new-password", "weakpass")...)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if code := exitcode.DetermineExitCode(err); code != exitcode.Rejected {
		t.Errorf("exit code = %d, want %d", code, exitcode.Rejected)
	}
	if n := srv.Count(http.MethodPost); n != 1 {
		t.Errorf("expected only the login POST, got %d", n)
	}
}

func TestUsersUpdate_ByEmail(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, asAdmin(srv, "users", "update", "engineer@rbr.local", "--name", "Erin Renamed")...)
	if err != nil {
		t.Fatalf("users update failed: %v", err)
	}
	if !strings.Contains(out, users.MsgUpdated) {
		t.Errorf("expected %q, got %q", users.MsgUpdated, out)
	}

	id, _ := srv.IDByEmail("engineer@rbr.local")
	u, _ := srv.User(id)
	if u["name"] != "Erin Renamed" {
		t.Errorf("name = %v, want Erin Renamed", u["name"])
	}

	for _, r := range srv.Requests() {
		if r.Method == http.MethodPatch {
			if _, ok := r.Body["password"]; ok {
				t.Error("expected no password in the update body")
			}
		}
	}
}

func TestUsersUpdate_NothingToUpdate(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, asAdmin(srv, "users", "update", "engineer@rbr.local")...)
	if err == nil {
		t.Fatal("expected an error")
	}
	if n := srv.Count(http.MethodPost); n != 0 {
		t.Errorf("expected no login before flag checks, got %d", n)
	}
}

func TestUsersToggle(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, asAdmin(srv, "users", "toggle", "manager@rbr.local")...)
	if err != nil {
		t.Fatalf("users toggle failed: %v", err)
	}
	if !strings.Contains(out, users.MsgDeactivated) {
		t.Errorf("expected %q, got %q", users.MsgDeactivated, out)
	}
}

func TestUsersToggle_ProtectedRoot(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, asAdmin(srv, "users", "toggle", "root@rbr.local")...)
	if err == nil {
		t.Fatal("expected the root user to be protected")
	}
	if code := exitcode.DetermineExitCode(err); code != exitcode.Rejected {
		t.Errorf("exit code = %d, want %d", code, exitcode.Rejected)
	}
	if n := srv.Count(http.MethodPatch); n != 0 {
		t.Errorf("expected no PATCH, got %d", n)
	}
}

func TestUsersDelete(t *testing.T) {
	srv := newBackend(t)
	id, _ := srv.IDByEmail("manager@rbr.local")

	_, err := execute(t, asAdmin(srv, "users", "delete", "manager@rbr.local")...)
	if err == nil {
		t.Fatal("expected deletion to require --yes without a terminal")
	}
	if _, ok := srv.User(id); !ok {
		t.Fatal("user should still exist")
	}

	out, err := execute(t, asAdmin(srv, "users", "delete", "manager@rbr.local", "--yes")...)
	if err != nil {
		t.Fatalf("users delete failed: %v", err)
	}
	if !strings.Contains(out, users.MsgDeleted) {
		t.Errorf("expected %q, got %q", users.MsgDeleted, out)
	}
	if _, ok := srv.User(id); ok {
		t.Error("expected the user to be deleted")
	}
}

func TestUsers_UnknownReference(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, asAdmin(srv, "users", "toggle", "nobody@rbr.local")...)
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := exitcode.DetermineExitCode(err); code != exitcode.Rejected {
		t.Errorf("exit code = %d, want %d", code, exitcode.Rejected)
	}
}

func TestRoutes_Role(t *testing.T) {
	out, err := execute(t, "routes", "--role", "Sales Manager")
	if err != nil {
		t.Fatalf("routes failed: %v", err)
	}

	for _, want := range []string{"Role: Sales Manager", "Home: /approvals", "Approvals", "RBR Info"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/users") {
		t.Error("sales manager should not see Users")
	}
}

func TestRoutes_UnknownRoleJSON(t *testing.T) {
	out, err := execute(t, "routes", "--role", "Intern", "--json")
	if err != nil {
		t.Fatalf("routes failed: %v", err)
	}

	var got []roleRoutes
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got) != 1 || got[0].Home != "/rbr-info" || len(got[0].Navigation) != 0 {
		t.Errorf("unexpected routes for unknown role: %+v", got)
	}
}

func TestConfigPath(t *testing.T) {
	cfgPath := isolate(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "config", "path"})

	if err := root.Execute(); err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != cfgPath {
		t.Errorf("config path = %q, want %q", out.String(), cfgPath)
	}
}

func TestConfigView_HidesPassword(t *testing.T) {
	cfgPath := isolate(t)
	t.Setenv("RBR_PASSWORD", "s3cret!")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "config", "view"})

	if err := root.Execute(); err != nil {
		t.Fatalf("config view failed: %v", err)
	}
	if strings.Contains(out.String(), "s3cret!") {
		t.Error("config view must not print the password")
	}
	if !strings.Contains(out.String(), "base_url: http://127.0.0.1:8000/api") {
		t.Errorf("expected default base_url, got:\n%s", out.String())
	}
}

func TestConfig_InvalidBaseURL(t *testing.T) {
	_, err := execute(t, "--base-url", "ftp://nowhere", "config", "view")
	if err == nil {
		t.Fatal("expected an invalid base URL to fail")
	}
	if code := exitcode.DetermineExitCode(err); code != exitcode.ConfigError {
		t.Errorf("exit code = %d, want %d", code, exitcode.ConfigError)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if info.Version != version.Version {
		t.Errorf("version = %s, want %s", info.Version, version.Version)
	}
}
