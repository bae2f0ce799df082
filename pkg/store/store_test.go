package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDocumentNumber(t *testing.T) {
	doc := Document{Fields: map[string]any{
		"float":   350.0,
		"int":     int(350),
		"int64":   int64(350),
		"jsonnum": json.Number("350"),
		"text":    "350",
		"nil":     nil,
	}}

	for _, field := range []string{"float", "int", "int64", "jsonnum"} {
		n, ok := doc.Number(field)
		if !ok || n != 350 {
			t.Errorf("Number(%q) = (%v, %v), want (350, true)", field, n, ok)
		}
	}
	for _, field := range []string{"text", "nil", "missing"} {
		if n, ok := doc.Number(field); ok || n != 0 {
			t.Errorf("Number(%q) = (%v, %v), want (0, false)", field, n, ok)
		}
	}
}

func TestDocumentClone(t *testing.T) {
	doc := Document{ID: "a", Fields: map[string]any{"description": "oats"}, CreatedAt: time.Now()}
	clone := doc.Clone()
	clone.Fields["description"] = "granola"
	if doc.Fields["description"] != "oats" {
		t.Error("Clone must not share the fields map")
	}
}

func TestFilterMatches(t *testing.T) {
	doc := Document{Fields: map[string]any{"date": "2024-01-01", "estimatedCalories": 350.0}}

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"zero filter matches all", Filter{}, true},
		{"string equality", Filter{Field: "date", Value: "2024-01-01"}, true},
		{"string mismatch", Filter{Field: "date", Value: "2024-01-02"}, false},
		{"missing field", Filter{Field: "mealType", Value: "Lunch"}, false},
		{"numeric equality across types", Filter{Field: "estimatedCalories", Value: 350}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(doc); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterKey(t *testing.T) {
	a := Filter{Field: "date", Value: "2024-01-01"}
	b := Filter{Field: "date", Value: "2024-01-01"}
	c := Filter{Field: "date", Value: "2024-01-02"}

	if a.Key() != b.Key() {
		t.Error("equivalent filters must share a key")
	}
	if a.Key() == c.Key() {
		t.Error("distinct filters must not share a key")
	}
	if (Filter{}).Key() != "" {
		t.Error("zero filter key must be empty")
	}
}
