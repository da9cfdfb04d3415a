package route

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/felixgeelhaar/rbr-console/internal/session"
)

// DefaultMaxRedirects bounds a single redirect chain.
const DefaultMaxRedirects = 8

// ErrRedirectLoop is returned when a redirect chain exceeds the hop limit.
var ErrRedirectLoop = errors.New("route: too many redirects")

// SessionReader is the view of the session the guards need.
type SessionReader interface {
	Snapshot() session.Snapshot
}

// Options tune guard behavior.
type Options struct {
	// StrictRoles redirects a shell path the role has no sidebar entry for
	// to the role's home. Off by default: any token holder may open any
	// shell path by typing it.
	StrictRoles bool

	// MaxRedirects bounds redirect chains. Zero means DefaultMaxRedirects.
	MaxRedirects int
}

// Resolution is the outcome of running the guards over a requested path.
type Resolution struct {
	Location
	Requested  string
	Redirected bool
	Hops       int
}

// Router keeps a history of visited paths and runs the guards on every
// transition into a new path. It is safe for concurrent use.
type Router struct {
	mu        sync.Mutex
	sess      SessionReader
	opts      Options
	entries   []string
	index     int
	listeners map[int]func(Location)
	nextID    int
}

// NewRouter returns a router whose history holds the resolved start path.
func NewRouter(sess SessionReader, start string, opts Options) (*Router, error) {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	r := &Router{
		sess:      sess,
		opts:      opts,
		listeners: make(map[int]func(Location)),
	}
	res, err := r.Resolve(start)
	if err != nil {
		return nil, err
	}
	r.entries = []string{res.Path}
	return r, nil
}

// Resolve runs the guards over path without touching history.
func (r *Router) Resolve(path string) (Resolution, error) {
	requested := Clean(path)
	current := requested
	snap := r.sess.Snapshot()

	for hop := 0; hop <= r.opts.MaxRedirects; hop++ {
		next, redirect := r.guard(current, snap)
		if !redirect {
			return Resolution{
				Location:   locate(current),
				Requested:  requested,
				Redirected: hop > 0,
				Hops:       hop,
			}, nil
		}
		current = next
	}
	return Resolution{}, fmt.Errorf("%w: %s", ErrRedirectLoop, requested)
}

// guard returns the redirect target for path, if any.
func (r *Router) guard(path string, snap session.Snapshot) (string, bool) {
	e, ok := table[path]
	if !ok {
		return PathRoot, true
	}

	switch e.zone {
	case ZonePublic:
		if snap.Complete() {
			return HomeFor(snap.Role), true
		}
	case ZoneShell:
		if !snap.Authenticated() {
			return PathLogin, true
		}
		if e.redirect != "" {
			return e.redirect, true
		}
		if r.opts.StrictRoles && hasItem(path) && !Allows(snap.Role, path) {
			if home := HomeFor(snap.Role); home != path {
				return home, true
			}
		}
	}
	return "", false
}

// Navigate resolves path and pushes the result, dropping forward history.
func (r *Router) Navigate(path string) (Resolution, error) {
	res, err := r.Resolve(path)
	if err != nil {
		return res, err
	}

	r.mu.Lock()
	r.entries = append(r.entries[:r.index+1], res.Path)
	r.index = len(r.entries) - 1
	r.mu.Unlock()

	r.notify(res.Location)
	return res, nil
}

// Replace resolves path and overwrites the current entry.
func (r *Router) Replace(path string) (Resolution, error) {
	res, err := r.Resolve(path)
	if err != nil {
		return res, err
	}

	r.mu.Lock()
	r.entries[r.index] = res.Path
	r.mu.Unlock()

	r.notify(res.Location)
	return res, nil
}

// Reload re-runs the guards over the current path.
func (r *Router) Reload() (Resolution, error) {
	return r.Replace(r.Current().Path)
}

// Back moves one entry back. Guards run on the entry moved to; a redirect
// overwrites it. Moving onto an entry with the same path is not a route
// change and notifies nobody. It reports false when there is no earlier
// entry.
func (r *Router) Back() (bool, error) {
	return r.step(-1)
}

// Forward moves one entry forward, with the same rules as Back.
func (r *Router) Forward() (bool, error) {
	return r.step(1)
}

func (r *Router) step(delta int) (bool, error) {
	r.mu.Lock()
	target := r.index + delta
	if target < 0 || target >= len(r.entries) {
		r.mu.Unlock()
		return false, nil
	}
	from := r.entries[r.index]
	r.index = target
	to := r.entries[target]
	r.mu.Unlock()

	if from == to {
		return true, nil
	}

	res, err := r.Resolve(to)
	if err != nil {
		return true, err
	}
	if res.Path != to {
		r.mu.Lock()
		r.entries[r.index] = res.Path
		r.mu.Unlock()
	}
	r.notify(res.Location)
	return true, nil
}

// Duplicate pushes a copy of the current entry without running guards or
// notifying listeners. A back step from the copy lands on the same path.
func (r *Router) Duplicate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.entries[r.index]
	r.entries = append(r.entries[:r.index+1], cur)
	r.index = len(r.entries) - 1
}

// ResetTo discards all history and starts over at path.
func (r *Router) ResetTo(path string) (Resolution, error) {
	res, err := r.Resolve(path)
	if err != nil {
		return res, err
	}

	r.mu.Lock()
	r.entries = []string{res.Path}
	r.index = 0
	r.mu.Unlock()

	r.notify(res.Location)
	return res, nil
}

// Current returns the location at the history cursor.
func (r *Router) Current() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return locate(r.entries[r.index])
}

// Entries returns a copy of the history paths.
func (r *Router) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// Index returns the history cursor.
func (r *Router) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Subscribe registers fn to run after every route change. The returned
// func unregisters it.
func (r *Router) Subscribe(fn func(Location)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Router) notify(loc Location) {
	r.mu.Lock()
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(Location), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, r.listeners[id])
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(loc)
	}
}
