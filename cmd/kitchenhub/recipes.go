package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/james702283/ai-kitchen-health-suite/internal/hub"
)

func newRecipesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Generate, save, and export recipes",
	}
	cmd.AddCommand(
		newRecipesGenerateCommand(opts),
		newRecipesSaveCommand(opts),
		newRecipesListCommand(opts),
		newRecipesDeleteCommand(opts),
		newRecipesExportCommand(opts),
	)
	return cmd
}

func newRecipesGenerateCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "generate <ingredients>...",
		Short: "Suggest recipes for the ingredients you have",
		Long: `Suggest recipes for a list of ingredients. With --json the
suggestions print as JSON, one per line, ready for "recipes save":

  kitchenhub recipes generate chicken rice --json | head -1 | kitchenhub recipes save -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, err := openHub(opts)
			if err != nil {
				return err
			}

			recipes, err := h.Generate(cmd.Context(), strings.Join(args, ", "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				for _, r := range recipes {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}
			for i, r := range recipes {
				if i > 0 {
					fmt.Fprintln(out, strings.Repeat("-", 40))
				}
				fmt.Fprint(out, hub.ShareText(r))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print recipes as JSON")
	return cmd
}

func newRecipesSaveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Save a recipe (JSON file, or - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			var recipe hub.Recipe
			if err := json.Unmarshal(raw, &recipe); err != nil {
				return fmt.Errorf("parse recipe: %w", err)
			}

			h, queue, err := openHub(opts)
			if err != nil {
				return err
			}
			id, err := h.SaveRecipe(cmd.Context(), recipe)
			if err != nil {
				return err
			}
			if msg, ok := queue.Current(); ok {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %q as %s.\n", recipe.Title, id)
			return nil
		},
	}
}

func newRecipesListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, err := openHub(opts)
			if err != nil {
				return err
			}

			saved, err := h.OpenSaved(cmd.Context())
			if err != nil {
				return err
			}
			defer saved.Close()

			set, err := firstSet(saved)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(set) == 0 {
				fmt.Fprintln(out, "No saved recipes.")
				return nil
			}
			for _, doc := range sortedDocs(set) {
				fmt.Fprintf(out, "%s  %s\n", doc.ID, doc.String("title"))
			}
			return nil
		},
	}
}

func newRecipesDeleteCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, queue, err := openHub(opts)
			if err != nil {
				return err
			}
			if err := h.DeleteRecipe(cmd.Context(), args[0], yes); err != nil {
				return err
			}
			if msg, ok := queue.Current(); ok {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func newRecipesExportCommand(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved recipe to a .txt file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, err := openHub(opts)
			if err != nil {
				return err
			}

			saved, err := h.OpenSaved(cmd.Context())
			if err != nil {
				return err
			}
			defer saved.Close()

			set, err := firstSet(saved)
			if err != nil {
				return err
			}
			doc, ok := set[args[0]]
			if !ok {
				return fmt.Errorf("no saved recipe with id %s", args[0])
			}

			path, err := hub.ExportText(hub.RecipeFromDocument(doc), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s.\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write the .txt file into")
	return cmd
}
