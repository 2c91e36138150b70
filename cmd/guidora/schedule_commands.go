package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"guidora/internal/config"
	"guidora/internal/language"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/scheduler"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Publish scheduling operations",
	}
	scheduleCmd.AddCommand(newScheduleRunCommand(ctx))
	scheduleCmd.AddCommand(newScheduleBatchCommand(ctx))
	scheduleCmd.AddCommand(newScheduleUnitCommand(ctx))
	return scheduleCmd
}

func newScheduleRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one scheduling cadence pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				sched := scheduler.New(machine, cfg.Scheduler, cfg.Pipeline.Languages, logging.NewNop())
				result, err := sched.RunCadence(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected %d, scheduled %d, deferred %d\n",
					result.Selected, result.Scheduled, result.Deferred)
				return nil
			})
		},
	}
}

func newScheduleBatchCommand(ctx *commandContext) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Preview the next publish batch without scheduling it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				sched := scheduler.New(machine, cfg.Scheduler, cfg.Pipeline.Languages, logging.NewNop())
				batch, err := sched.NextBatch(cmd.Context(), size)
				if err != nil {
					return err
				}
				if len(batch) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No units ready to publish")
					return nil
				}
				rows := make([][]string, 0, len(batch))
				for i, unit := range batch {
					rows = append(rows, []string{
						fmt.Sprintf("%d", i+1),
						unit.ID,
						truncate(unit.Title, 40),
						language.Display(unit.Language),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "ID", "Title", "Language"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&size, "size", "n", 10, "Maximum batch size")
	return cmd
}

func newScheduleUnitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unit <unit-id>",
		Short: "Assign a publish slot to a ready unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				sched := scheduler.New(machine, cfg.Scheduler, cfg.Pipeline.Languages, logging.NewNop())
				slot, err := sched.SchedulePublish(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unit %s scheduled for %s %s\n", args[0], slot.Date, slot.Time)
				return nil
			})
		},
	}
}
