// Package memstore is the embedded development document store: an in-memory
// document set per logical path with push-based full-snapshot fan-out to
// subscribers, optional CEL write rules, and optional SQLite persistence. It
// backs the dev server and the test suites; production deployments point the
// sync layer at a remote store instead.
package memstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// Options configures a Store.
type Options struct {
	// Path of the SQLite database file; "" keeps documents in memory only.
	DBPath string
	// Rules maps operation names ("create", "delete", or the fallback
	// "write") to CEL expressions. Absent rules allow the operation.
	Rules map[string]string
	// SnapshotBuffer is the per-subscription snapshot channel depth.
	// When a consumer falls behind, the oldest pending snapshot is dropped
	// so the latest full set always wins.
	SnapshotBuffer int
}

// DefaultOptions returns in-memory defaults.
func DefaultOptions() Options {
	return Options{SnapshotBuffer: 16}
}

// Store implements store.Client.
type Store struct {
	log     *slog.Logger
	rules   *rulesEngine
	persist *persist
	bufSize int
	newID   func() string
	now     func() time.Time

	mu     sync.Mutex
	docs   map[string]map[string]store.Document // path -> id -> doc
	subs   map[string][]*subscription
	closed bool
}

// Open creates a Store. If opts.DBPath is set, previously persisted documents
// are loaded and every mutation is written through.
func Open(opts Options) (*Store, error) {
	if opts.SnapshotBuffer <= 0 {
		opts.SnapshotBuffer = DefaultOptions().SnapshotBuffer
	}

	s := &Store{
		log:     logger.Get(),
		bufSize: opts.SnapshotBuffer,
		newID:   uuid.NewString,
		now:     time.Now,
		docs:    make(map[string]map[string]store.Document),
		subs:    make(map[string][]*subscription),
	}

	if len(opts.Rules) > 0 {
		engine, err := newRulesEngine(opts.Rules)
		if err != nil {
			return nil, err
		}
		s.rules = engine
	}

	if opts.DBPath != "" {
		p, err := openPersist(opts.DBPath)
		if err != nil {
			return nil, err
		}
		docs, err := p.load()
		if err != nil {
			p.close()
			return nil, err
		}
		s.persist = p
		s.docs = docs
	}

	return s, nil
}

// Close releases the persistence handle and terminates all subscriptions.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var all []*subscription
	for _, subs := range s.subs {
		all = append(all, subs...)
	}
	s.subs = make(map[string][]*subscription)
	s.mu.Unlock()

	for _, sub := range all {
		sub.terminate()
	}
	if s.persist != nil {
		return s.persist.close()
	}
	return nil
}

// Subscribe opens a snapshot stream for (path, filter). The current matching
// set is delivered immediately; every subsequent mutation on the path
// delivers a fresh full set. Cancelling ctx closes the subscription.
func (s *Store) Subscribe(ctx context.Context, path string, filter store.Filter) (store.Subscription, error) {
	if path == "" {
		return nil, apperrors.InvalidInput("path must not be empty")
	}

	sub := &subscription{
		store:  s,
		path:   path,
		filter: filter,
		snaps:  make(chan store.Snapshot, s.bufSize),
		errs:   make(chan error, 4),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperrors.Unavailable("store is closed", nil)
	}
	s.subs[path] = append(s.subs[path], sub)
	sub.offer(s.snapshotFor(path, filter))
	s.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub, nil
}

// Create validates the request against the write rules, stores the document,
// persists it, and fans the new snapshot out to subscribers of the path.
func (s *Store) Create(ctx context.Context, path string, fields map[string]any) (string, error) {
	if path == "" {
		return "", apperrors.InvalidInput("path must not be empty")
	}
	if len(fields) == 0 {
		return "", apperrors.InvalidInput("document fields must not be empty")
	}
	if s.rules != nil {
		if err := s.rules.authorize("create", path, fields, nil); err != nil {
			return "", err
		}
	}

	doc := store.Document{
		ID:        s.newID(),
		Fields:    fields,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", apperrors.Unavailable("store is closed", nil)
	}
	if s.persist != nil {
		if err := s.persist.insert(path, doc); err != nil {
			return "", apperrors.Unavailable("persisting document", err)
		}
	}
	if s.docs[path] == nil {
		s.docs[path] = make(map[string]store.Document)
	}
	s.docs[path][doc.ID] = doc
	s.broadcastLocked(path)

	s.log.Debug("document created", "path", path, "id", doc.ID)
	return doc.ID, nil
}

// Delete removes a document and fans the shrunken snapshot out.
func (s *Store) Delete(ctx context.Context, path string, id string) error {
	if path == "" || id == "" {
		return apperrors.InvalidInput("path and id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.Unavailable("store is closed", nil)
	}
	existing, ok := s.docs[path][id]
	if !ok {
		return apperrors.NotFound("no document " + id + " at " + path)
	}
	if s.rules != nil {
		if err := s.rules.authorize("delete", path, nil, existing.Fields); err != nil {
			return err
		}
	}
	if s.persist != nil {
		if err := s.persist.remove(path, id); err != nil {
			return apperrors.Unavailable("removing document", err)
		}
	}
	delete(s.docs[path], id)
	s.broadcastLocked(path)

	s.log.Debug("document deleted", "path", path, "id", id)
	return nil
}

// InjectFault delivers a one-shot error event to every subscriber of path.
// Subscriptions stay open and keep their materialized state; this is the
// fault-injection hook for exercising transient-failure handling.
func (s *Store) InjectFault(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[path] {
		sub.offerErr(err)
	}
}

// snapshotFor must be called with s.mu held. Documents are ordered by
// creation time (then id) for deterministic delivery.
func (s *Store) snapshotFor(path string, filter store.Filter) store.Snapshot {
	var snap store.Snapshot
	for _, doc := range s.docs[path] {
		if filter.Matches(doc) {
			snap = append(snap, doc.Clone())
		}
	}
	sort.Slice(snap, func(i, j int) bool {
		if !snap[i].CreatedAt.Equal(snap[j].CreatedAt) {
			return snap[i].CreatedAt.Before(snap[j].CreatedAt)
		}
		return snap[i].ID < snap[j].ID
	})
	return snap
}

// broadcastLocked must be called with s.mu held; the lock serializes
// deliveries so each subscription observes snapshots in mutation order.
func (s *Store) broadcastLocked(path string) {
	for _, sub := range s.subs[path] {
		sub.offer(s.snapshotFor(path, sub.filter))
	}
}

func (s *Store) removeSub(target *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subs[target.path]
	out := list[:0]
	for _, sub := range list {
		if sub != target {
			out = append(out, sub)
		}
	}
	if len(out) == 0 {
		delete(s.subs, target.path)
	} else {
		s.subs[target.path] = out
	}
}

// subscription implements store.Subscription.
type subscription struct {
	store  *Store
	path   string
	filter store.Filter
	snaps  chan store.Snapshot
	errs   chan error
	once   sync.Once
	done   chan struct{}
}

func (sub *subscription) Snapshots() <-chan store.Snapshot { return sub.snaps }
func (sub *subscription) Errors() <-chan error             { return sub.errs }

// Close unregisters the subscription and closes its channels. Safe to call
// more than once.
func (sub *subscription) Close() error {
	sub.once.Do(func() {
		sub.store.removeSub(sub)
		close(sub.done)
		// No broadcast can target sub after removeSub returned: deliveries
		// happen under the store lock removeSub just held.
		close(sub.snaps)
		close(sub.errs)
	})
	return nil
}

// terminate closes channels without touching the store's subscriber map; the
// store already dropped its reference.
func (sub *subscription) terminate() {
	sub.once.Do(func() {
		close(sub.done)
		close(sub.snaps)
		close(sub.errs)
	})
}

// offer delivers a snapshot without blocking the store: if the consumer is
// behind, the oldest pending snapshot is dropped. Full-set semantics make
// that safe; the latest delivery supersedes everything before it.
func (sub *subscription) offer(snap store.Snapshot) {
	for {
		select {
		case sub.snaps <- snap:
			return
		default:
			select {
			case <-sub.snaps:
			default:
			}
		}
	}
}

func (sub *subscription) offerErr(err error) {
	select {
	case sub.errs <- err:
	default:
		// Error channel full; the consumer already has unread failures.
	}
}
