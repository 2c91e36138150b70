package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"guidora/internal/config"
	"guidora/internal/contentid"
	"guidora/internal/daemon"
	"guidora/internal/gateway"
	"guidora/internal/generation"
	"guidora/internal/ledger"
	"guidora/internal/logging"
	"guidora/internal/notifications"
	"guidora/internal/pipeline"
	"guidora/internal/providers/deepseek"
	"guidora/internal/providers/elevenlabs"
	"guidora/internal/providers/openai"
	"guidora/internal/scheduler"
	"guidora/internal/speech"
	"guidora/internal/translation"
	"guidora/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon operations",
	}
	daemonCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the pipeline daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	})
	return daemonCmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := pipeline.Open(cfg)
	if err != nil {
		return fmt.Errorf("open pipeline store: %w", err)
	}
	defer store.Close()

	machine := pipeline.NewStateMachine(store, logger)
	engine := contentid.NewEngine(store, cfg.Pipeline.DuplicateThreshold, logger)
	notifier := notifications.NewService(cfg)
	costLedger := ledger.New(store, cfg.Budget, logger,
		ledger.WithSoftLimitNotify(func(window string, spent, limit float64) {
			if err := notifier.NotifyBudgetWarning(context.Background(), window, spent, limit); err != nil {
				logger.Debug("budget warning notification failed", logging.Error(err))
			}
		}))

	gw := gateway.New(costLedger, logger, gateway.WithCostCeiling(cfg.Budget.MaxPerRequest))
	registerProviders(gw, cfg)

	sched := scheduler.New(machine, cfg.Scheduler, cfg.Pipeline.Languages, logger)

	manager := workflow.NewManager(cfg, machine, sched, notifier, logger)
	artifactsDir := cfg.Paths.ArtifactsDir
	manager.RegisterHandler(pipeline.StageDraft, generation.NewExtractor(engine, store, logger))
	manager.RegisterHandler(pipeline.StageExtracted, generation.NewGenerator(gw, store, artifactsDir, logger))
	manager.RegisterHandler(pipeline.StageGenerated, translation.NewTranslator(gw, store, artifactsDir, logger))
	manager.RegisterHandler(pipeline.StageTranslated, speech.NewSynthesizer(gw, store, artifactsDir, logger))
	manager.RegisterHandler(pipeline.StageSynthesizedAudio, workflow.NewVideoWatcher(store, artifactsDir, logger))
	manager.RegisterHandler(pipeline.StageVideoReady, workflow.NewThumbnailWatcher(store, artifactsDir, logger))
	manager.RegisterHandler(pipeline.StageThumbnailReady, workflow.NewReadinessChecker(logger))

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return err
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	return nil
}

func registerProviders(gw *gateway.Gateway, cfg *config.Config) {
	for name, providerCfg := range cfg.TextProviders {
		if !providerCfg.Enabled {
			continue
		}
		switch name {
		case "openai":
			gw.Register(gateway.CapabilityText, openai.NewClient(providerCfg), providerCfg)
		case "deepseek":
			gw.Register(gateway.CapabilityText, deepseek.NewClient(providerCfg), providerCfg)
		}
	}
	for name, providerCfg := range cfg.SpeechProviders {
		if !providerCfg.Enabled {
			continue
		}
		switch name {
		case "openai":
			gw.Register(gateway.CapabilitySpeech, openai.NewClient(providerCfg), providerCfg)
		case "elevenlabs":
			gw.Register(gateway.CapabilitySpeech, elevenlabs.NewClient(providerCfg), providerCfg)
		}
	}
}
