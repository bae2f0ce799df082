package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/james702283/ai-kitchen-health-suite/internal/auth"
	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/namespace"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store/memstore"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store/rest"
)

const testTenant = "kitchen-hub"

func newTestServer(t *testing.T) *rest.Client {
	t.Helper()

	st, err := memstore.Open(memstore.DefaultOptions())
	if err != nil {
		t.Fatalf("memstore.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	authSvc, err := auth.Open(auth.Options{
		Tenant:    testTenant,
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("auth.Open failed: %v", err)
	}
	t.Cleanup(func() { authSvc.Close() })

	srv := httptest.NewServer(New(Options{
		Store:  st,
		Auth:   authSvc,
		Tenant: testTenant,
	}).Handler())
	t.Cleanup(srv.Close)

	return rest.New(srv.URL)
}

func signUp(t *testing.T, client *rest.Client, email string) rest.User {
	t.Helper()
	ctx := context.Background()
	if _, err := client.Register(ctx, email, "hunter2hunter2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, user, err := client.Login(ctx, email, "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return user
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

func TestAuthFlow(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	user := signUp(t, client, "cook@example.com")
	if user.ID == "" {
		t.Fatal("login returned no user id")
	}

	if _, _, err := client.Login(ctx, "cook@example.com", "wrong-password"); !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("bad password: %v", err)
	}
	if _, err := client.Register(ctx, "cook@example.com", "hunter2hunter2"); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("duplicate register: %v", err)
	}
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	user := signUp(t, client, "cook@example.com")
	path, err := namespace.Resolve(testTenant, user.ID, "mealLogs")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	sub, err := client.Subscribe(ctx, path, store.Filter{Field: "date", Value: "2024-01-01"})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if snap := waitSnapshot(t, sub); len(snap) != 0 {
		t.Errorf("initial snapshot has %d documents, want 0", len(snap))
	}

	id, err := client.Create(ctx, path, map[string]any{
		"date": "2024-01-01", "mealType": "Lunch", "description": "salad", "estimatedCalories": 420,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	snap := waitSnapshot(t, sub)
	if len(snap) != 1 || snap[0].ID != id {
		t.Fatalf("snapshot after create = %v", snap)
	}
	if snap[0].String("description") != "salad" {
		t.Errorf("fields did not round-trip: %v", snap[0].Fields)
	}
	if got, ok := snap[0].Number("estimatedCalories"); !ok || got != 420 {
		t.Errorf("estimatedCalories = %v, want 420", got)
	}

	// A document outside the filter never shows up.
	if _, err := client.Create(ctx, path, map[string]any{"date": "2024-01-02", "description": "pasta"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if snap := waitSnapshot(t, sub); len(snap) != 1 {
		t.Errorf("filter leaked a non-matching document: %v", snap)
	}

	if err := client.Delete(ctx, path, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if snap := waitSnapshot(t, sub); len(snap) != 0 {
		t.Errorf("snapshot after delete has %d documents, want 0", len(snap))
	}

	if err := client.Delete(ctx, path, "missing"); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("delete of missing document: %v", err)
	}
}

func TestNamespaceEnforcement(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	signUp(t, client, "cook@example.com")

	foreign, _ := namespace.Resolve(testTenant, "someone-else", "mealLogs")
	if _, err := client.Create(ctx, foreign, map[string]any{"description": "oats"}); !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("foreign principal create: %v", err)
	}
	if _, err := client.Subscribe(ctx, foreign, store.Filter{}); !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("foreign principal watch: %v", err)
	}

	otherTenant, _ := namespace.Resolve("other-tenant", "cook", "mealLogs")
	if _, err := client.Create(ctx, otherTenant, map[string]any{"description": "oats"}); !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("foreign tenant create: %v", err)
	}

	if _, err := client.Create(ctx, "not-a-path", map[string]any{"a": 1}); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("malformed path: %v", err)
	}
}

func TestMissingTokenIsRejected(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	path, _ := namespace.Resolve(testTenant, "u", "mealLogs")
	if _, err := client.Create(ctx, path, map[string]any{"a": 1}); !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("unauthenticated create: %v", err)
	}
	if _, err := client.Subscribe(ctx, path, store.Filter{}); !apperrors.IsKind(err, apperrors.KindPermissionDenied) {
		t.Errorf("unauthenticated watch: %v", err)
	}
}
