package hub

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/realtime"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// Recipe is a generated or saved recipe.
type Recipe struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

// Generate suggests recipes for a comma-separated ingredient list. The
// suggestions are a fixed sample set; only the input validation and the
// result shape are contractual.
func (h *Hub) Generate(ctx context.Context, ingredients string) ([]Recipe, error) {
	if strings.TrimSpace(ingredients) == "" {
		return nil, apperrors.InvalidInput("enter at least one ingredient")
	}

	listed := splitIngredients(ingredients)
	return []Recipe{
		{
			Title:       "Quick Skillet of " + strings.Join(listed, ", "),
			Description: "A fast one-pan dinner built around what you have on hand.",
			Ingredients: append(listed, "olive oil", "salt", "black pepper"),
			Instructions: []string{
				"Heat a skillet over medium-high heat with a splash of olive oil.",
				"Add the main ingredients and cook until browned.",
				"Season to taste and serve hot.",
			},
		},
		{
			Title:       "Hearty Bake of " + strings.Join(listed, ", "),
			Description: "An oven-baked dish that needs almost no attention.",
			Ingredients: append(listed, "butter", "breadcrumbs"),
			Instructions: []string{
				"Preheat the oven to 200C.",
				"Layer the ingredients in a baking dish and top with breadcrumbs.",
				"Bake for 25 minutes until golden.",
			},
		},
	}, nil
}

func splitIngredients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SaveRecipe stores a recipe in the user's saved collection.
func (h *Hub) SaveRecipe(ctx context.Context, r Recipe) (string, error) {
	path, err := h.collectionPath(savedRecipesCollection)
	if err != nil {
		return "", err
	}

	ingredients := make([]any, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ingredients[i] = ing
	}
	instructions := make([]any, len(r.Instructions))
	for i, step := range r.Instructions {
		instructions[i] = step
	}

	return h.coord.Create(ctx, path, map[string]any{
		"title":        r.Title,
		"description":  r.Description,
		"ingredients":  ingredients,
		"instructions": instructions,
	})
}

// DeleteRecipe removes a saved recipe. The caller must pass confirmed=true;
// the confirmation step is part of the contract, not UI decoration.
func (h *Hub) DeleteRecipe(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.InvalidInput("deletion requires confirmation")
	}
	path, err := h.collectionPath(savedRecipesCollection)
	if err != nil {
		return err
	}
	return h.coord.Delete(ctx, path, id)
}

// OpenSaved opens a live view of the user's saved recipes.
func (h *Hub) OpenSaved(ctx context.Context) (*realtime.Handle, error) {
	path, err := h.collectionPath(savedRecipesCollection)
	if err != nil {
		return nil, err
	}
	return h.manager.Open(ctx, path, store.Filter{})
}

// RecipeFromDocument rebuilds a Recipe from its stored fields.
func RecipeFromDocument(doc store.Document) Recipe {
	r := Recipe{
		Title:       doc.String("title"),
		Description: doc.String("description"),
	}
	if raw, ok := doc.Fields["ingredients"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				r.Ingredients = append(r.Ingredients, s)
			}
		}
	}
	if raw, ok := doc.Fields["instructions"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				r.Instructions = append(r.Instructions, s)
			}
		}
	}
	return r
}

// ShareText renders a recipe as plain shareable text.
func ShareText(r Recipe) string {
	var b strings.Builder
	b.WriteString(r.Title + "\n")
	if r.Description != "" {
		b.WriteString("\n" + r.Description + "\n")
	}
	if len(r.Ingredients) > 0 {
		b.WriteString("\nIngredients:\n")
		for _, ing := range r.Ingredients {
			b.WriteString("- " + ing + "\n")
		}
	}
	if len(r.Instructions) > 0 {
		b.WriteString("\nInstructions:\n")
		for i, step := range r.Instructions {
			b.WriteString(strconv.Itoa(i+1) + ". " + step + "\n")
		}
	}
	return b.String()
}

// ExportText writes the shareable text to a .txt file in dir and returns
// the file path.
func ExportText(r Recipe, dir string) (string, error) {
	if r.Title == "" {
		return "", apperrors.InvalidInput("recipe has no title")
	}
	name := slugify(r.Title) + ".txt"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(ShareText(r)), 0o644); err != nil {
		return "", apperrors.Unavailable("write export file", err)
	}
	return path, nil
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
