package memstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

const mealLogsPath = "tenants/T/users/U/mealLogs"

func openStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitSnapshot(t *testing.T, sub store.Subscription) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeDeliversInitialAndUpdatedSnapshots(t *testing.T) {
	s := openStore(t, DefaultOptions())
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, mealLogsPath, store.Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if snap := waitSnapshot(t, sub); len(snap) != 0 {
		t.Errorf("initial snapshot has %d documents, want 0", len(snap))
	}

	id, err := s.Create(ctx, mealLogsPath, map[string]any{
		"date": "2024-01-01", "mealType": "Breakfast", "description": "oats", "estimatedCalories": 350,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	snap := waitSnapshot(t, sub)
	if len(snap) != 1 || snap[0].ID != id {
		t.Fatalf("snapshot after create = %v", snap)
	}
	if snap[0].CreatedAt.IsZero() {
		t.Error("createdAt must be stamped by the store")
	}

	if err := s.Delete(ctx, mealLogsPath, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if snap := waitSnapshot(t, sub); len(snap) != 0 {
		t.Errorf("snapshot after delete has %d documents, want 0", len(snap))
	}
}

func TestFilterScopesSnapshots(t *testing.T) {
	s := openStore(t, DefaultOptions())
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, mealLogsPath, store.Filter{Field: "date", Value: "2024-01-01"})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	waitSnapshot(t, sub) // initial empty

	if _, err := s.Create(ctx, mealLogsPath, map[string]any{"date": "2024-01-01", "description": "oats"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if snap := waitSnapshot(t, sub); len(snap) != 1 {
		t.Fatalf("matching document not delivered")
	}

	// A document outside the filter still triggers a delivery for the path,
	// but the snapshot only contains matching documents.
	if _, err := s.Create(ctx, mealLogsPath, map[string]any{"date": "2024-01-02", "description": "salad"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	snap := waitSnapshot(t, sub)
	if len(snap) != 1 || snap[0].String("description") != "oats" {
		t.Errorf("filtered snapshot = %v", snap)
	}
}

func TestSnapshotOrderIsDeterministic(t *testing.T) {
	s := openStore(t, DefaultOptions())
	ctx := context.Background()

	times := []time.Time{
		time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC),
	}
	i := 0
	s.now = func() time.Time { t := times[i%len(times)]; i++; return t }

	for _, desc := range []string{"oats", "salad", "pasta"} {
		if _, err := s.Create(ctx, mealLogsPath, map[string]any{"description": desc}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	sub, err := s.Subscribe(ctx, mealLogsPath, store.Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	snap := waitSnapshot(t, sub)
	if len(snap) != 3 {
		t.Fatalf("snapshot has %d documents, want 3", len(snap))
	}
	for j, want := range []string{"oats", "salad", "pasta"} {
		if snap[j].String("description") != want {
			t.Errorf("snap[%d] = %q, want %q", j, snap[j].String("description"), want)
		}
	}
}

func TestSlowConsumerCoalescesToLatest(t *testing.T) {
	opts := DefaultOptions()
	opts.SnapshotBuffer = 1
	s := openStore(t, opts)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, mealLogsPath, store.Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	// Nothing reads the channel while three creates land; the single-slot
	// buffer keeps only the newest full set.
	for _, desc := range []string{"a", "b", "c"} {
		if _, err := s.Create(ctx, mealLogsPath, map[string]any{"description": desc}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	snap := waitSnapshot(t, sub)
	if len(snap) != 3 {
		t.Errorf("latest snapshot has %d documents, want 3 (latest wins)", len(snap))
	}
}

func TestDeleteMissingDocument(t *testing.T) {
	s := openStore(t, DefaultOptions())
	err := s.Delete(context.Background(), mealLogsPath, "nope")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestInvalidArguments(t *testing.T) {
	s := openStore(t, DefaultOptions())
	ctx := context.Background()

	if _, err := s.Create(ctx, "", map[string]any{"a": 1}); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("empty path: %v", err)
	}
	if _, err := s.Create(ctx, mealLogsPath, nil); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("empty fields: %v", err)
	}
	if _, err := s.Subscribe(ctx, "", store.Filter{}); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("empty subscribe path: %v", err)
	}
	if err := s.Delete(ctx, mealLogsPath, ""); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("empty id: %v", err)
	}
}

func TestRulesDenyWrites(t *testing.T) {
	opts := DefaultOptions()
	opts.Rules = map[string]string{
		"write": `request.path.startsWith("tenants/T/")`,
	}
	s := openStore(t, opts)
	ctx := context.Background()

	if _, err := s.Create(ctx, mealLogsPath, map[string]any{"description": "oats"}); err != nil {
		t.Fatalf("allowed create failed: %v", err)
	}

	_, err := s.Create(ctx, "tenants/OTHER/users/U/mealLogs", map[string]any{"description": "oats"})
	if !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("expected PermissionDenied, got %v", err)
	}
}

func TestRulesOpSpecificOverridesWrite(t *testing.T) {
	opts := DefaultOptions()
	opts.Rules = map[string]string{
		"create": "true",
		"delete": "false",
	}
	s := openStore(t, opts)
	ctx := context.Background()

	id, err := s.Create(ctx, mealLogsPath, map[string]any{"description": "oats"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(ctx, mealLogsPath, id); !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("delete should be denied, got %v", err)
	}
}

func TestBrokenRuleFailsOpen(t *testing.T) {
	opts := DefaultOptions()
	opts.Rules = map[string]string{"write": `request.path.`}
	if _, err := Open(opts); err == nil {
		t.Error("Open must reject an uncompilable rule")
	}
}

func TestInjectFaultKeepsSubscriptionAlive(t *testing.T) {
	s := openStore(t, DefaultOptions())
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, mealLogsPath, store.Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	waitSnapshot(t, sub)

	s.InjectFault(mealLogsPath, apperrors.Unavailable("store unreachable", nil))

	select {
	case err := <-sub.Errors():
		if !apperrors.IsKind(err, apperrors.KindUnavailable) {
			t.Errorf("expected Unavailable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fault was not delivered")
	}

	// The stream still delivers snapshots afterwards.
	if _, err := s.Create(ctx, mealLogsPath, map[string]any{"description": "oats"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if snap := waitSnapshot(t, sub); len(snap) != 1 {
		t.Error("subscription dead after injected fault")
	}
}

func TestContextCancelClosesSubscription(t *testing.T) {
	s := openStore(t, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := s.Subscribe(ctx, mealLogsPath, store.Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSnapshot(t, sub)

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.subs[mealLogsPath])
		s.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("cancelled subscription was not released")
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "documents.db")
	ctx := context.Background()

	opts := DefaultOptions()
	opts.DBPath = dbPath

	s1, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	id, err := s1.Create(ctx, mealLogsPath, map[string]any{"date": "2024-01-01", "description": "oats"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id2, err := s1.Create(ctx, mealLogsPath, map[string]any{"date": "2024-01-02", "description": "salad"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s1.Delete(ctx, mealLogsPath, id2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2 := openStore(t, opts)
	sub, err := s2.Subscribe(ctx, mealLogsPath, store.Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	snap := waitSnapshot(t, sub)
	if len(snap) != 1 || snap[0].ID != id || snap[0].String("description") != "oats" {
		t.Errorf("reloaded snapshot = %v", snap)
	}
}
