package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// beatCmd starts the same cron-driven trigger as scheduler. The two
// are process-identical here: spec.md's "start the wall-clock trigger
// only" names a distinct role for deployments that split trigger-firing
// from execution across a message broker, but this engine has no
// broker component to decouple them across (see DESIGN.md); both
// subcommands exist for operational parity with that topology.
var beatCmd = &cobra.Command{
	Use:   "beat",
	Short: "Start the wall-clock trigger (process-identical to scheduler; see DESIGN.md)",
	Run: func(cmd *cobra.Command, args []string) {
		logger := setupLogger(logLevel)
		defer logger.Sync()

		eng, err := buildEngine(logger, configPath, dataDir)
		if err != nil {
			logger.Error("failed to build engine", zap.Error(err))
			os.Exit(exitRuntimeError)
		}

		svc, err := eng.newService()
		if err != nil {
			logger.Error("failed to build beat service", zap.Error(err))
			os.Exit(exitRuntimeError)
		}

		svc.Start()
		logger.Info("beat trigger started", zap.String("windowStart", eng.cfg.WindowStartHHMM), zap.String("timezone", eng.cfg.Timezone))

		waitForSignal()
		logger.Info("beat trigger shutting down")
		svc.Stop()
		eng.bus.Stop()
	},
}
