package hub

import (
	"context"
	"strings"

	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/realtime"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// LogMeal records a meal for the signed-in user. Calories are estimated at
// write time and stored with the document, so the daily total is a plain
// sum over the set.
func (h *Hub) LogMeal(ctx context.Context, date, mealType, description string) (string, error) {
	path, err := h.collectionPath(mealLogsCollection)
	if err != nil {
		return "", err
	}

	description = strings.TrimSpace(description)
	fields := map[string]any{
		"date":              date,
		"mealType":          mealType,
		"description":       description,
		"estimatedCalories": h.estimate(description),
	}
	return h.coord.Create(ctx, path, fields)
}

// DeleteMeal removes a logged meal by id.
func (h *Hub) DeleteMeal(ctx context.Context, id string) error {
	path, err := h.collectionPath(mealLogsCollection)
	if err != nil {
		return err
	}
	return h.coord.Delete(ctx, path, id)
}

// OpenDay opens a live view of the user's meal logs for one date.
func (h *Hub) OpenDay(ctx context.Context, date string) (*realtime.Handle, error) {
	if date == "" {
		return nil, apperrors.InvalidInput("date must not be empty")
	}
	path, err := h.collectionPath(mealLogsCollection)
	if err != nil {
		return nil, err
	}
	return h.manager.Open(ctx, path, store.Filter{Field: "date", Value: date})
}

// TotalCalories sums the estimated calories across a materialized set.
func TotalCalories(set realtime.Set) float64 {
	return realtime.Sum(set, realtime.Field("estimatedCalories"))
}
