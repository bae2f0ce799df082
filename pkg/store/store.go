// Package store defines the document store contract the sync layer is built
// against: push-based subscriptions delivering full snapshots, plus create and
// delete mutations. Implementations live in the subpackages (memstore for the
// embedded dev store, rest for the remote transport).
package store

import (
	"context"
	"encoding/json"
	"reflect"
	"time"
)

// Document is one stored document. The id is assigned by the store on
// creation and immutable thereafter.
type Document struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Clone returns a deep-enough copy for handing to consumers: the fields map
// is copied so a listener cannot mutate stored state.
func (d Document) Clone() Document {
	if d.Fields == nil {
		return d
	}
	fields := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	d.Fields = fields
	return d
}

// Number reads a numeric field, accepting the integer and float types that
// survive JSON round trips. Missing or non-numeric fields report ok=false.
func (d Document) Number(field string) (float64, bool) {
	v, ok := d.Fields[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String reads a string field, or "" if missing or not a string.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Snapshot is a full-set delivery: the complete set of documents matching a
// subscription's filter at a point in time. Snapshots are never deltas.
type Snapshot []Document

// Filter is an equality predicate on a single field. The zero Filter matches
// every document.
type Filter struct {
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Field == ""
}

// Matches reports whether doc satisfies the filter.
func (f Filter) Matches(doc Document) bool {
	if f.IsZero() {
		return true
	}
	v, ok := doc.Fields[f.Field]
	if !ok {
		return false
	}
	return equalValues(v, f.Value)
}

// Key returns a canonical string for the filter, used to coalesce equivalent
// subscriptions.
func (f Filter) Key() string {
	if f.IsZero() {
		return ""
	}
	raw, err := json.Marshal(f.Value)
	if err != nil {
		raw = []byte(reflect.TypeOf(f.Value).String())
	}
	return f.Field + "=" + string(raw)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() && a == b {
		return true
	}
	// Numeric fields arrive as float64 from JSON but may be compared against
	// native ints.
	af, aok := Document{Fields: map[string]any{"v": a}}.Number("v")
	bf, bok := Document{Fields: map[string]any{"v": b}}.Number("v")
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// Subscription is one live snapshot stream. Snapshots are strictly ordered as
// delivered; Errors is a side channel for transient failures and does not
// terminate the stream. Close releases the stream promptly.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Errors() <-chan error
	Close() error
}

// Client is the document store consumed by the sync layer. Implementations
// surface failures as Kind-tagged errors from pkg/errors; none of the kinds
// are fatal to the process.
type Client interface {
	Subscribe(ctx context.Context, path string, filter Filter) (Subscription, error)
	Create(ctx context.Context, path string, fields map[string]any) (string, error)
	Delete(ctx context.Context, path string, id string) error
}
