package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reconcilePositionsCmd = &cobra.Command{
	Use:   "reconcile-positions",
	Short: "Compare broker positions to persisted positions and repair divergences",
	Run: func(cmd *cobra.Command, args []string) {
		logger := setupLogger(logLevel)
		defer logger.Sync()

		eng, err := buildEngine(logger, configPath, dataDir)
		if err != nil {
			logger.Error("failed to build engine", zap.Error(err))
			os.Exit(exitRuntimeError)
		}

		if err := eng.sched.ReconcilePositions(context.Background()); err != nil {
			logger.Error("reconcile-positions failed", zap.Error(err))
			eng.bus.Stop()
			os.Exit(exitRuntimeError)
		}
		eng.bus.Stop()
		logger.Info("reconcile-positions complete")
		os.Exit(exitSuccess)
	},
}
