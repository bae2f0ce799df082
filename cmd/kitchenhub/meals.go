package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/james702283/ai-kitchen-health-suite/internal/hub"
	"github.com/james702283/ai-kitchen-health-suite/pkg/realtime"
)

func newMealsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meals",
		Short: "Log meals and watch daily totals",
	}
	cmd.AddCommand(newMealsLogCommand(opts), newMealsListCommand(opts))
	return cmd
}

func newMealsLogCommand(opts *rootOptions) *cobra.Command {
	var date, mealType string

	cmd := &cobra.Command{
		Use:   "log <description>",
		Short: "Log a meal (calories are estimated automatically)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, queue, err := openHub(opts)
			if err != nil {
				return err
			}

			id, err := h.LogMeal(cmd.Context(), date, mealType, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if msg, ok := queue.Current(); ok {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged meal %s on %s.\n", id, date)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "day to log under (YYYY-MM-DD)")
	cmd.Flags().StringVar(&mealType, "type", "", "meal type: "+strings.Join(hub.MealTypes, ", "))
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newMealsListCommand(opts *rootOptions) *cobra.Command {
	var date string
	var watch bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show a day's meals and running calorie total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, queue, err := openHub(opts)
			if err != nil {
				return err
			}

			day, err := h.OpenDay(cmd.Context(), date)
			if err != nil {
				return err
			}
			defer day.Close()

			if !watch {
				set, err := firstSet(day)
				if err != nil {
					return err
				}
				printDay(cmd, date, set)
				return nil
			}

			queue.SetSink(func(msg string) {
				if msg != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), ">>", msg)
				}
			})
			day.Listen(realtime.ListenerFuncs{
				Change: func(set realtime.Set) { printDay(cmd, date, set) },
				Err: func(err error) {
					fmt.Fprintln(cmd.ErrOrStderr(), "!! stream fault (showing last good data):", err)
				},
			})

			fmt.Fprintln(cmd.ErrOrStderr(), "Watching; Ctrl-C to stop.")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "day to show (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep streaming updates")
	return cmd
}

func printDay(cmd *cobra.Command, date string, set realtime.Set) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Meals for %s:\n", date)
	if len(set) == 0 {
		fmt.Fprintln(out, "  (none logged)")
	}
	for _, doc := range sortedDocs(set) {
		kcal, _ := doc.Number("estimatedCalories")
		fmt.Fprintf(out, "  %-9s %-30s %4.0f kcal  [%s]\n",
			doc.String("mealType"), doc.String("description"), kcal, doc.ID)
	}
	fmt.Fprintf(out, "Total: %.0f kcal\n", hub.TotalCalories(set))
}
