package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindRoundTrip(t *testing.T) {
	kinds := []Kind{KindUnknown, KindInvalidInput, KindUnavailable, KindPermissionDenied, KindNotFound, KindBusy}
	for _, k := range kinds {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if got := ParseKind("nonsense"); got != KindUnknown {
		t.Errorf("ParseKind(nonsense) = %v, want KindUnknown", got)
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := fmt.Errorf("watch meal logs: %w", Unavailable("store unreachable", cause))

	if !IsKind(err, KindUnavailable) {
		t.Fatalf("expected KindUnavailable, got %v", KindOf(err))
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause should survive the chain")
	}
}

func TestErrorMessage(t *testing.T) {
	e := Unavailable("store unreachable", stderrors.New("timeout"))
	if e.Error() != "store unreachable: timeout" {
		t.Errorf("unexpected message: %q", e.Error())
	}

	plain := InvalidInput("description must not be blank")
	if plain.Error() != "description must not be blank" {
		t.Errorf("unexpected message: %q", plain.Error())
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(stderrors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want KindUnknown", got)
	}
	if IsKind(nil, KindBusy) {
		t.Error("IsKind(nil) must be false")
	}
}
