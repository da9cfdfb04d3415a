// Package session holds the authenticated session for the lifetime of the
// process. Nothing here touches disk: closing the console ends the session.
package session

import (
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/rbr-console/internal/role"
)

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	Role         role.Role
}

// Authenticated reports whether an access token is present.
func (s Snapshot) Authenticated() bool {
	return s.AccessToken != ""
}

// Complete reports whether both an access token and a role are present.
func (s Snapshot) Complete() bool {
	return s.AccessToken != "" && !s.Role.IsZero()
}

// Store is the process-scoped session. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state Snapshot
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Set replaces the whole session in one step. Readers never observe a
// token from one login paired with the role from another.
func (s *Store) Set(access, refresh string, r role.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Snapshot{AccessToken: access, RefreshToken: refresh, Role: r}
}

// AccessToken returns the bearer token and whether one is set.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken, s.state.AccessToken != ""
}

// RefreshToken returns the refresh token and whether one is set.
// It is stored for completeness; nothing refreshes sessions.
func (s *Store) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RefreshToken, s.state.RefreshToken != ""
}

// Role returns the session role and whether one is set.
func (s *Store) Role() (role.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Role, !s.state.Role.IsZero()
}

// Authenticated reports whether an access token is present.
func (s *Store) Authenticated() bool {
	return s.Snapshot().Authenticated()
}

// Complete reports whether both an access token and a role are present.
func (s *Store) Complete() bool {
	return s.Snapshot().Complete()
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Clear drops all session data.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Snapshot{}
}

// Fingerprint returns a short, stable digest of the access token for log
// correlation, or "" when there is no token.
func (s *Store) Fingerprint() string {
	tok, ok := s.AccessToken()
	if !ok {
		return ""
	}
	sum := blake3.Sum256([]byte(tok))
	return fmt.Sprintf("%x", sum[:6])
}
