package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"guidora/internal/config"
	"guidora/internal/language"
	"guidora/internal/pipeline"
)

const (
	ansiReset = "\x1b[0m"
	ansiBlue  = "\x1b[34m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline counts and budget spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				cmdCtx := cmd.Context()

				counts, err := store.CountByStageAndLanguage(cmdCtx)
				if err != nil {
					return fmt.Errorf("load stage counts: %w", err)
				}
				printSection(out, "Pipeline", colorize)
				if len(counts) == 0 {
					fmt.Fprintln(out, "  No units in the pipeline")
				} else {
					rows := make([][]string, 0, len(counts))
					for _, count := range counts {
						rows = append(rows, []string{
							string(count.Stage),
							language.Display(count.Language),
							fmt.Sprintf("%d", count.Count),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Stage", "Language", "Units"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight},
					))
				}

				now := time.Now()
				printSection(out, "Budget", colorize)
				for _, window := range []struct {
					label  string
					bucket string
					limit  float64
				}{
					{"today", pipeline.DayBucket(now), cfg.Budget.DailyLimit},
					{"this month", pipeline.MonthBucket(now), cfg.Budget.MonthlyLimit},
				} {
					reserved, committed, err := store.BucketTotals(cmdCtx, window.bucket)
					if err != nil {
						return fmt.Errorf("load budget totals: %w", err)
					}
					fmt.Fprintf(out, "  %-12s $%.4f committed, $%.4f reserved of $%.2f\n",
						window.label+":", committed, reserved, window.limit)
				}

				printSection(out, "Scheduling", colorize)
				slots, err := store.SlotsForDate(cmdCtx, pipeline.DayBucket(now))
				if err != nil {
					return fmt.Errorf("load slots: %w", err)
				}
				if len(slots) == 0 {
					fmt.Fprintln(out, "  No publish slots claimed today")
				} else {
					rows := make([][]string, 0, len(slots))
					for _, slot := range slots {
						rows = append(rows, []string{slot.Time, language.Display(slot.Language), slot.UnitID})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Time", "Language", "Unit"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft},
					))
				}
				if cadence, err := store.CadenceRun(cmdCtx, "publish"); err == nil && cadence != nil {
					fmt.Fprintf(out, "  Last cadence: %s (%d units)\n",
						cadence.LastRun.Local().Format("2006-01-02 15:04"), cadence.UnitsProcessed)
				}
				return nil
			})
		},
	}
}

func printSection(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	fmt.Fprintln(out, line)
}
