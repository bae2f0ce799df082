// Package namespace maps (tenant, principal, collection) to the logical path
// used to address the document store. The path convention is persisted data:
// it must not change once chosen.
package namespace

import (
	"fmt"
	"strings"

	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
)

const (
	tenantsSegment = "tenants"
	usersSegment   = "users"
)

// Resolve returns the logical path tenants/{tenant}/users/{principal}/{collection}.
// It is deterministic and injective for distinct inputs; components must be
// non-empty and must not contain '/'.
func Resolve(tenant, principal, collection string) (string, error) {
	for _, part := range []struct {
		name, value string
	}{
		{"tenant", tenant},
		{"principal", principal},
		{"collection", collection},
	} {
		if part.value == "" {
			return "", apperrors.InvalidInput(part.name + " must not be empty")
		}
		if strings.Contains(part.value, "/") {
			return "", apperrors.InvalidInput(part.name + " must not contain '/'")
		}
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", tenantsSegment, tenant, usersSegment, principal, collection), nil
}

// Split inverts Resolve. It is used server-side to enforce that a request's
// path matches the authenticated principal.
func Split(path string) (tenant, principal, collection string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 5 || parts[0] != tenantsSegment || parts[2] != usersSegment ||
		parts[1] == "" || parts[3] == "" || parts[4] == "" {
		return "", "", "", apperrors.InvalidInput("malformed logical path: " + path)
	}
	return parts[1], parts[3], parts[4], nil
}

// Collection returns the collection segment of a logical path, or "" if the
// path is malformed.
func Collection(path string) string {
	_, _, c, err := Split(path)
	if err != nil {
		return ""
	}
	return c
}
