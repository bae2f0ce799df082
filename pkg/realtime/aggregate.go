package realtime

import "github.com/james702283/ai-kitchen-health-suite/pkg/store"

// Sum aggregates fn over every document in the set. It is pure and recomputed
// from scratch on every call; deriving incrementally would drift when the
// store redelivers a replaced set wholesale.
func Sum(set Set, fn func(store.Document) float64) float64 {
	var total float64
	for _, doc := range set {
		total += fn(doc)
	}
	return total
}

// Field adapts a numeric document field for Sum. A missing or non-numeric
// field counts as 0.
func Field(name string) func(store.Document) float64 {
	return func(doc store.Document) float64 {
		n, _ := doc.Number(name)
		return n
	}
}
