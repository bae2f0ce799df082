// Package realtime is the scoped realtime document synchronization layer: it
// keeps reference-counted live subscriptions against the document store,
// materializes the latest snapshot per (path, filter) pair, derives aggregate
// values from the materialized sets, and coordinates mutations so the active
// subscription stays the single source of truth for visible state.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// Set is the materialized set of one subscription: the documents of the most
// recently delivered snapshot, keyed by document id. Consumers must treat a
// Set as read-only.
type Set map[string]store.Document

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id, doc := range s {
		out[id] = doc.Clone()
	}
	return out
}

// Listener observes one subscription. OnChange receives the new materialized
// set after every applied snapshot; OnError receives stream failures as a
// side channel (the set is preserved across them). Both are invoked
// synchronously on the subscription's consumer goroutine, in registration
// order.
type Listener interface {
	OnChange(set Set)
	OnError(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil members are skipped.
type ListenerFuncs struct {
	Change func(set Set)
	Err    func(err error)
}

func (l ListenerFuncs) OnChange(set Set) {
	if l.Change != nil {
		l.Change(set)
	}
}

func (l ListenerFuncs) OnError(err error) {
	if l.Err != nil {
		l.Err(err)
	}
}

// Manager owns the canonical subscriptions. Consumers hold lightweight
// Handles; equivalent (path, filter) opens share one underlying store stream.
type Manager struct {
	client store.Client
	log    *slog.Logger

	mu   sync.Mutex
	subs map[string]*syncState
}

// NewManager creates a Manager on top of the given store client.
func NewManager(client store.Client) *Manager {
	return &Manager{
		client: client,
		log:    logger.Get(),
		subs:   make(map[string]*syncState),
	}
}

// syncState is the canonical state for one (path, filter) pair.
type syncState struct {
	key    string
	path   string
	filter store.Filter
	stream store.Subscription

	refs     int  // guarded by Manager.mu
	released bool // guarded by Manager.mu

	mu        sync.Mutex
	set       Set
	listeners []*listenerEntry

	done chan struct{}
}

type listenerEntry struct {
	l       Listener
	removed bool
}

func subKey(path string, filter store.Filter) string {
	return path + "\x1f" + filter.Key()
}

// Open returns a handle on the subscription for (path, filter). The first
// opener starts consuming the store's snapshot stream; later openers share it.
func (m *Manager) Open(ctx context.Context, path string, filter store.Filter) (*Handle, error) {
	key := subKey(path, filter)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.subs[key]; ok {
		s.refs++
		return &Handle{m: m, s: s}, nil
	}

	stream, err := m.client.Subscribe(ctx, path, filter)
	if err != nil {
		return nil, err
	}

	s := &syncState{
		key:    key,
		path:   path,
		filter: filter,
		stream: stream,
		refs:   1,
		set:    make(Set),
		done:   make(chan struct{}),
	}
	m.subs[key] = s
	go s.run(m.log)

	m.log.Debug("subscription opened", "path", path, "filter", filter.Key())
	return &Handle{m: m, s: s}, nil
}

// CloseAll tears down every open subscription. Used on principal change:
// sign-out must stop all snapshot consumption promptly. Outstanding handles
// become inert; closing them is a no-op.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	states := make([]*syncState, 0, len(m.subs))
	for key, s := range m.subs {
		s.released = true
		states = append(states, s)
		delete(m.subs, key)
	}
	m.mu.Unlock()

	for _, s := range states {
		close(s.done)
		if err := s.stream.Close(); err != nil {
			m.log.Warn("closing subscription stream", "path", s.path, "error", err)
		}
	}
}

// Active returns the number of live underlying subscriptions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Manager) release(s *syncState) {
	m.mu.Lock()
	if s.released {
		m.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		m.mu.Unlock()
		return
	}
	s.released = true
	delete(m.subs, s.key)
	m.mu.Unlock()

	close(s.done)
	if err := s.stream.Close(); err != nil {
		m.log.Warn("closing subscription stream", "path", s.path, "error", err)
	}
}

// run serializes snapshot application for one subscription. Stream errors are
// forwarded to listeners without clearing the set: stale-but-present beats
// empty, and the stream stays open so the store can recover.
func (s *syncState) run(log *slog.Logger) {
	snapshots := s.stream.Snapshots()
	errs := s.stream.Errors()
	for {
		select {
		case <-s.done:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			s.apply(snap)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("subscription stream error", "path", s.path, "error", err)
			s.forwardError(err)
		}
	}
}

// apply replaces the materialized set with the delivered snapshot. Redelivered
// ids overwrite, so the set never holds duplicates.
func (s *syncState) apply(snap store.Snapshot) {
	next := make(Set, len(snap))
	for _, doc := range snap {
		next[doc.ID] = doc.Clone()
	}

	s.mu.Lock()
	s.set = next
	listeners := s.activeListeners()
	s.mu.Unlock()

	if len(listeners) == 0 {
		return
	}
	shared := next.Clone()
	for _, l := range listeners {
		l.OnChange(shared)
	}
}

func (s *syncState) forwardError(err error) {
	s.mu.Lock()
	listeners := s.activeListeners()
	s.mu.Unlock()
	for _, l := range listeners {
		l.OnError(err)
	}
}

// activeListeners must be called with s.mu held.
func (s *syncState) activeListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, e := range s.listeners {
		if !e.removed {
			out = append(out, e.l)
		}
	}
	return out
}

// Handle is one consumer's reference to a shared subscription.
type Handle struct {
	m *Manager
	s *syncState

	mu     sync.Mutex
	closed bool
}

// Path returns the logical path this handle is subscribed to.
func (h *Handle) Path() string { return h.s.path }

// Filter returns the subscription's filter.
func (h *Handle) Filter() store.Filter { return h.s.filter }

// Set returns a copy of the current materialized set. It is non-blocking and
// returns an empty set until the first snapshot arrives. After a stream error
// it keeps returning the last good state.
func (h *Handle) Set() Set {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.set.Clone()
}

// Listen registers a listener and returns its removal function. Listeners
// registered through any handle of the same subscription are invoked in
// registration order.
func (h *Handle) Listen(l Listener) (remove func()) {
	entry := &listenerEntry{l: l}
	h.s.mu.Lock()
	h.s.listeners = append(h.s.listeners, entry)
	h.s.mu.Unlock()

	return func() {
		h.s.mu.Lock()
		entry.removed = true
		h.s.mu.Unlock()
	}
}

// Close releases this handle's reference. The last close releases the
// underlying stream; a subsequent Open with the same parameters starts fresh.
// Close is idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.m.release(h.s)
	return nil
}
