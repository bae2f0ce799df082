package main

import (
	"github.com/spf13/cobra"

	"github.com/james702283/ai-kitchen-health-suite/internal/config"
	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store/rest"
)

// rootOptions carries the loaded configuration to every subcommand.
type rootOptions struct {
	cfg *config.Config
}

// client builds a REST client against the configured server, carrying the
// configured token if one is set.
func (o *rootOptions) client() *rest.Client {
	c := rest.New(o.cfg.Client.ServerURL)
	if o.cfg.Client.Token != "" {
		c.SetToken(o.cfg.Client.Token)
	}
	return c
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{cfg: config.Default()}

	root := &cobra.Command{
		Use:   "kitchenhub",
		Short: "Meal logging and recipe box with live-updating views",
		Long: `kitchenhub runs the development document server and works with it:
log meals, watch a day's total update live, and keep a recipe box.

Configuration comes from a .env file and KITCHENHUB_* environment
variables (for example KITCHENHUB_CLIENT_SERVER_URL).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(opts.cfg); err != nil {
				return err
			}
			logger.Init(logger.Config{
				Level:  opts.cfg.Log.Level,
				Format: opts.cfg.Log.Format,
			})
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(opts),
		newAuthCommand(opts),
		newMealsCommand(opts),
		newRecipesCommand(opts),
	)
	return root
}
