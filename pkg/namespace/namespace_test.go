package namespace

import (
	"testing"

	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
)

func TestResolve(t *testing.T) {
	path, err := Resolve("kitchen-hub", "user-123", "mealLogs")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := "tenants/kitchen-hub/users/user-123/mealLogs"
	if path != want {
		t.Errorf("Resolve = %q, want %q", path, want)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	cases := []struct {
		name                          string
		tenant, principal, collection string
	}{
		{"empty tenant", "", "u", "mealLogs"},
		{"empty principal", "t", "", "mealLogs"},
		{"empty collection", "t", "u", ""},
		{"slash in tenant", "a/b", "u", "mealLogs"},
		{"slash in principal", "t", "u/x", "mealLogs"},
		{"slash in collection", "t", "u", "meal/Logs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.tenant, tc.principal, tc.collection)
			if !apperrors.IsKind(err, apperrors.KindInvalidInput) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestResolveInjective(t *testing.T) {
	a, _ := Resolve("t1", "u1", "mealLogs")
	b, _ := Resolve("t1", "u2", "mealLogs")
	c, _ := Resolve("t2", "u1", "mealLogs")
	if a == b || a == c || b == c {
		t.Errorf("paths for distinct inputs must differ: %q %q %q", a, b, c)
	}
}

func TestSplitRoundTrip(t *testing.T) {
	path, err := Resolve("kitchen-hub", "user-123", "savedRecipes")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	tenant, principal, collection, err := Split(path)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if tenant != "kitchen-hub" || principal != "user-123" || collection != "savedRecipes" {
		t.Errorf("Split = (%q, %q, %q)", tenant, principal, collection)
	}
}

func TestSplitRejectsMalformed(t *testing.T) {
	for _, path := range []string{
		"",
		"tenants/t/users/u",
		"tenants/t/users/u/c/extra",
		"artifacts/t/users/u/c",
		"tenants/t/groups/u/c",
		"tenants//users/u/c",
	} {
		if _, _, _, err := Split(path); err == nil {
			t.Errorf("Split(%q) should fail", path)
		}
	}
	if got := Collection("tenants/t/users/u/mealLogs"); got != "mealLogs" {
		t.Errorf("Collection = %q", got)
	}
	if got := Collection("bogus"); got != "" {
		t.Errorf("Collection(bogus) = %q, want empty", got)
	}
}
