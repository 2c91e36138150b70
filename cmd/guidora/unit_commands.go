package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"guidora/internal/config"
	"guidora/internal/language"
	"guidora/internal/logging"
	"guidora/internal/notifications"
	"guidora/internal/pipeline"
	"guidora/internal/stage"
	"guidora/internal/workflow"
)

func newUnitCommand(ctx *commandContext) *cobra.Command {
	unitCmd := &cobra.Command{
		Use:   "unit",
		Short: "Content unit operations",
	}
	unitCmd.AddCommand(newUnitSubmitCommand(ctx))
	unitCmd.AddCommand(newUnitListCommand(ctx))
	unitCmd.AddCommand(newUnitShowCommand(ctx))
	unitCmd.AddCommand(newUnitRetryCommand(ctx))
	unitCmd.AddCommand(newUnitAbandonCommand(ctx))
	unitCmd.AddCommand(newUnitMarkPublishedCommand(ctx))
	unitCmd.AddCommand(newUnitMarkFailedCommand(ctx))
	return unitCmd
}

func newUnitSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		lang      string
		audience  string
		sourceRef string
		text      string
		textFile  string
	)
	cmd := &cobra.Command{
		Use:   "submit <title>",
		Short: "Propose a new content unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("title is required")
			}
			source := text
			if textFile != "" {
				data, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("read source file: %w", err)
				}
				source = string(data)
			}
			if strings.TrimSpace(source) == "" {
				return fmt.Errorf("source text is required (use --text or --file)")
			}
			if !language.IsKnown(lang) {
				return fmt.Errorf("unknown language %q", lang)
			}

			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				unitID, err := machine.Submit(cmd.Context(), sourceRef, title, language.Normalize(lang), audience)
				if err != nil {
					return err
				}

				sourcePath := filepath.Join(cfg.Paths.ArtifactsDir, unitID, "source.txt")
				if err := os.MkdirAll(filepath.Dir(sourcePath), 0o755); err != nil {
					return fmt.Errorf("create artifact dir: %w", err)
				}
				if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
					return fmt.Errorf("write source text: %w", err)
				}
				encoded, err := stage.EncodeArtifacts(map[string]string{stage.ArtifactSource: sourcePath})
				if err != nil {
					return err
				}
				if err := store.SetArtifacts(cmd.Context(), unitID, encoded); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Submitted unit %s (%s, %s)\n", unitID, language.Display(lang), audience)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&lang, "language", "l", "en", "Target language code")
	cmd.Flags().StringVarP(&audience, "audience", "a", "universal", "Audience tag")
	cmd.Flags().StringVar(&sourceRef, "source-ref", "", "Opaque reference to the source material")
	cmd.Flags().StringVar(&text, "text", "", "Inline source text")
	cmd.Flags().StringVar(&textFile, "file", "", "File containing the source text")
	return cmd
}

func newUnitListCommand(ctx *commandContext) *cobra.Command {
	var stageFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content units",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				var stages []pipeline.Stage
				if stageFilter != "" {
					parsed, ok := pipeline.ParseStage(stageFilter)
					if !ok {
						return fmt.Errorf("unknown stage %q", stageFilter)
					}
					stages = append(stages, parsed)
				}
				units, err := store.ListUnits(cmd.Context(), stages...)
				if err != nil {
					return err
				}
				if len(units) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No units found")
					return nil
				}
				rows := make([][]string, 0, len(units))
				for _, unit := range units {
					rows = append(rows, []string{
						unit.ID,
						truncate(unit.Title, 40),
						language.Display(unit.Language),
						string(unit.Stage),
						fmt.Sprintf("%d", unit.Version),
						fmt.Sprintf("$%.4f", unit.CostUSD),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Language", "Stage", "Version", "Cost"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&stageFilter, "stage", "s", "", "Only show units in this stage")
	return cmd
}

func newUnitShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <unit-id>",
		Short: "Show a unit's state and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				state, err := machine.Query(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				unit := state.Unit
				fmt.Fprintf(out, "Unit:      %s\n", unit.ID)
				fmt.Fprintf(out, "Title:     %s\n", unit.Title)
				fmt.Fprintf(out, "Language:  %s\n", language.Display(unit.Language))
				fmt.Fprintf(out, "Audience:  %s\n", unit.Audience)
				fmt.Fprintf(out, "Stage:     %s (version %d)\n", unit.Stage, unit.Version)
				fmt.Fprintf(out, "Cost:      $%.4f\n", unit.CostUSD)
				if unit.Fingerprint != "" {
					fmt.Fprintf(out, "Signature: %s\n", unit.Fingerprint)
				}
				if unit.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s\n", unit.ErrorMessage)
				}
				if unit.Abandoned {
					fmt.Fprintln(out, "Abandoned: yes")
				}
				if slot, err := store.SlotForUnit(cmd.Context(), unit.ID); err == nil && slot != nil {
					fmt.Fprintf(out, "Slot:      %s %s\n", slot.Date, slot.Time)
				}
				fmt.Fprintln(out, "History:")
				for _, event := range state.History {
					line := fmt.Sprintf("  v%-3d %s  %s", event.Version, event.CreatedAt.Local().Format("2006-01-02 15:04:05"), event.Stage)
					if event.Evidence != "" {
						line += "  " + truncate(event.Evidence, 60)
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func newUnitRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <unit-id>",
		Short: "Return a failed unit to its last successful stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				version, err := machine.Retry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unit %s retried (version %d)\n", args[0], version)
				return nil
			})
		},
	}
}

func newUnitAbandonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <unit-id>",
		Short: "Acknowledge a failed unit as terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *pipeline.Store) error {
				if err := store.Abandon(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unit %s abandoned\n", args[0])
				return nil
			})
		},
	}
}

func newUnitMarkPublishedCommand(ctx *commandContext) *cobra.Command {
	var detail string
	cmd := &cobra.Command{
		Use:   "mark-published <unit-id>",
		Short: "Record a successful publish reported by the uploader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				notifier := notifications.NewService(cfg)
				version, err := workflow.MarkPublished(cmd.Context(), machine, notifier, args[0], detail)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unit %s published (version %d)\n", args[0], version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&detail, "detail", "", "Optional publish evidence, e.g. the platform URL")
	return cmd
}

func newUnitMarkFailedCommand(ctx *commandContext) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "mark-publish-failed <unit-id>",
		Short: "Record a failed publish reported by the uploader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *pipeline.Store) error {
				machine := pipeline.NewStateMachine(store, logging.NewNop())
				notifier := notifications.NewService(cfg)
				version, err := workflow.MarkPublishFailed(cmd.Context(), machine, notifier, args[0], reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unit %s marked failed (version %d)\n", args[0], version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the publish failed")
	return cmd
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
