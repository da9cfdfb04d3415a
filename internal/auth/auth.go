// Package auth performs the login exchange and owns the session's
// lifecycle: a successful login populates the session, logout clears it.
package auth

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/felixgeelhaar/rbr-console/internal/directory"
	"github.com/felixgeelhaar/rbr-console/internal/errors"
	"github.com/felixgeelhaar/rbr-console/internal/log"
	"github.com/felixgeelhaar/rbr-console/internal/role"
	"github.com/felixgeelhaar/rbr-console/internal/route"
	"github.com/felixgeelhaar/rbr-console/internal/session"
)

// Login failures. Both leave the session untouched.
var (
	// ErrInvalidCredentials covers every failed exchange, whether the
	// backend rejected the credentials or could not be reached.
	ErrInvalidCredentials = errors.New(errors.ErrCodeInvalidCredentials, "Invalid email or password.")

	// ErrMissingToken means the exchange succeeded but carried no access
	// token.
	ErrMissingToken = errors.New(errors.ErrCodeMissingToken, "Login succeeded but no token received.")
)

// RequiredMessage is shown under an empty login field.
const RequiredMessage = "Required"

// FieldErrors reports blank login fields. No request is made.
type FieldErrors struct {
	Email    string
	Password string
}

// Error implements the error interface
func (f *FieldErrors) Error() string {
	var parts []string
	if f.Email != "" {
		parts = append(parts, "email: "+f.Email)
	}
	if f.Password != "" {
		parts = append(parts, "password: "+f.Password)
	}
	return strings.Join(parts, ", ")
}

// LoginClient performs the credential exchange.
type LoginClient interface {
	Login(ctx context.Context, creds directory.Credentials) (*directory.LoginResponse, error)
}

// Authenticator logs users in and out.
type Authenticator struct {
	client  LoginClient
	session *session.Store
	logger  *log.Logger
}

// NewAuthenticator returns an Authenticator that writes into sess.
func NewAuthenticator(client LoginClient, sess *session.Store, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Authenticator{
		client:  client,
		session: sess,
		logger:  logger.WithComponent("auth"),
	}
}

// Login exchanges credentials and, on success, stores the token pair and
// role and returns the role's home path.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, error) {
	if fe := checkRequired(email, password); fe != nil {
		return "", fe
	}

	resp, err := a.client.Login(ctx, directory.Credentials{Email: email, Password: password})
	if err != nil {
		a.logger.LogError("login failed", err)
		return "", ErrInvalidCredentials
	}

	if resp.Tokens.Access == "" {
		a.logger.Warn("login response carried no access token", "email", email)
		return "", ErrMissingToken
	}

	r := role.Parse(resp.User.Role())
	a.session.Set(resp.Tokens.Access, resp.Tokens.Refresh, r)

	home := route.HomeFor(r)
	args := []any{
		"user_id", resp.User.ID,
		"role", r.Kind().String(),
		"session", a.session.Fingerprint(),
		"home", home,
	}
	if c, err := a.session.Claims(); err == nil && !c.ExpiresAt.IsZero() {
		args = append(args, "expires", c.ExpiresAt)
	}
	a.logger.Info("logged in", args...)
	return home, nil
}

// Logout clears the session.
func (a *Authenticator) Logout() {
	if fp := a.session.Fingerprint(); fp != "" {
		a.logger.Info("logged out", "session", fp)
	}
	a.session.Clear()
}

func checkRequired(email, password string) *FieldErrors {
	var fe FieldErrors
	if strings.TrimSpace(email) == "" {
		fe.Email = RequiredMessage
	}
	if password == "" {
		fe.Password = RequiredMessage
	}
	if fe.Email == "" && fe.Password == "" {
		return nil
	}
	return &fe
}

// Message returns the text to show inline on the login form for err.
func Message(err error) string {
	var fe *FieldErrors
	if stderrors.As(err, &fe) {
		return fe.Error()
	}
	var ce *errors.ConsoleError
	if stderrors.As(err, &ce) {
		return ce.Message
	}
	return ErrInvalidCredentials.Message
}
