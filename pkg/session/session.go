// Package session models the authentication state the sync layer depends on:
// a tenant fixed for the process lifetime, and a principal that appears on
// sign-in and disappears on sign-out. It is explicit state threaded into the
// layers that need it, not an ambient singleton.
package session

import (
	"log/slog"
	"sync"

	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
)

// Session holds the tenant and the current principal. The zero principal
// means "absent": no collection may be addressed until one is set.
type Session struct {
	tenant string
	log    *slog.Logger

	mu        sync.Mutex
	principal string
	watchers  []*watcher
}

type watcher struct {
	fn      func(principal string)
	removed bool
}

// New creates a session for the given tenant with no principal.
func New(tenant string) *Session {
	return &Session{tenant: tenant, log: logger.Get()}
}

// Tenant returns the fixed tenant id.
func (s *Session) Tenant() string { return s.tenant }

// Principal returns the current principal, with ok=false while absent.
func (s *Session) Principal() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal, s.principal != ""
}

// SetPrincipal records a principal transition ("" = signed out) and notifies
// watchers synchronously, in registration order. Setting the same principal
// again is a no-op.
func (s *Session) SetPrincipal(principal string) {
	s.mu.Lock()
	if s.principal == principal {
		s.mu.Unlock()
		return
	}
	s.principal = principal
	watchers := make([]func(string), 0, len(s.watchers))
	for _, w := range s.watchers {
		if !w.removed {
			watchers = append(watchers, w.fn)
		}
	}
	s.mu.Unlock()

	if principal == "" {
		s.log.Info("principal signed out")
	} else {
		s.log.Info("principal signed in", "principal", principal)
	}
	for _, fn := range watchers {
		fn(principal)
	}
}

// OnChange registers a watcher invoked on every principal transition. The
// returned function removes it.
func (s *Session) OnChange(fn func(principal string)) (remove func()) {
	w := &watcher{fn: fn}
	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		w.removed = true
		s.mu.Unlock()
	}
}

// HandleCloser is the teardown surface of the sync layer (realtime.Manager).
type HandleCloser interface {
	CloseAll()
}

// Bind applies the teardown rule: every principal change, including sign-out,
// closes all open subscription handles, so nothing keeps consuming snapshots
// scoped to the previous principal. Returns the watcher's removal function.
func Bind(s *Session, m HandleCloser) (remove func()) {
	return s.OnChange(func(string) {
		m.CloseAll()
	})
}
