// Package navtrap intercepts back-navigation inside the authenticated
// shell. Stepping back does not leave the shell: it raises a warning, and
// leaving requires an explicit confirmation that ends the session.
package navtrap

import (
	"sync"

	"github.com/felixgeelhaar/rbr-console/internal/route"
)

// State is the trap's current state.
type State int

const (
	// Armed means a back signal will be intercepted.
	Armed State = iota
	// Warning means the exit warning is showing.
	Warning
)

// String returns the state name.
func (s State) String() string {
	if s == Warning {
		return "warning"
	}
	return "armed"
}

// History is the part of the router the trap drives.
type History interface {
	Current() route.Location
	Back() (bool, error)
	Duplicate()
	ResetTo(path string) (route.Resolution, error)
	Subscribe(fn func(route.Location)) func()
}

// Session is the part of the session the trap ends.
type Session interface {
	Clear()
}

// Trap is the back-navigation trap for the shell.
type Trap struct {
	mu      sync.Mutex
	history History
	session Session
	state   State
	stop    func()
}

// New returns a trap bound to the router and session. It does nothing
// until Attach or Arm is called.
func New(history History, sess Session) *Trap {
	return &Trap{history: history, session: sess}
}

// Attach arms the trap now if the current screen is in the shell, and
// again after every route change into the shell.
func (t *Trap) Attach() {
	t.mu.Lock()
	if t.stop != nil {
		t.mu.Unlock()
		return
	}
	t.stop = t.history.Subscribe(func(loc route.Location) {
		if loc.Zone == route.ZoneShell {
			t.Arm()
		}
	})
	t.mu.Unlock()

	if t.history.Current().Zone == route.ZoneShell {
		t.Arm()
	}
}

// Detach stops re-arming on route changes.
func (t *Trap) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

// Arm pushes a synthetic copy of the current entry so the next back step
// stays on the same screen.
func (t *Trap) Arm() {
	t.history.Duplicate()
	t.mu.Lock()
	t.state = Armed
	t.mu.Unlock()
}

// OnBack handles a back signal: the step lands on the synthetic entry's
// twin, a fresh synthetic entry is pushed, and the warning is raised. The
// visible location never changes. It fires on every back signal, even
// while the warning is already showing.
func (t *Trap) OnBack() error {
	if _, err := t.history.Back(); err != nil {
		return err
	}
	t.history.Duplicate()

	t.mu.Lock()
	t.state = Warning
	t.mu.Unlock()
	return nil
}

// Stay dismisses the warning.
func (t *Trap) Stay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Armed
}

// ConfirmExit ends the session and restarts history at login, so no
// earlier screen can be reached by stepping back.
func (t *Trap) ConfirmExit() (route.Resolution, error) {
	t.session.Clear()

	t.mu.Lock()
	t.state = Armed
	t.mu.Unlock()

	return t.history.ResetTo(route.PathLogin)
}

// State returns the current state.
func (t *Trap) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
