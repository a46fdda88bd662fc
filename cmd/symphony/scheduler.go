package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/healthz"
)

var healthzAddr string

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the daily scheduler (T-5 warmup and T window triggers)",
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
			logger.Error("failed to build scheduler service", zap.Error(err))
			os.Exit(exitRuntimeError)
		}

		hz := healthz.New(logger, healthzAddr, eng.sched.LastWindowResult)
		hz.Start()

		svc.Start()
		logger.Info("scheduler started",
			zap.String("windowStart", eng.cfg.WindowStartHHMM), zap.String("timezone", eng.cfg.Timezone),
			zap.String("healthz", hz.Addr()))

		waitForSignal()
		logger.Info("scheduler shutting down")
		svc.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hz.Stop(shutdownCtx)
		eng.bus.Stop()
	},
}

func init() {
	schedulerCmd.Flags().StringVar(&healthzAddr, "healthz-addr", ":8081", "liveness endpoint bind address")
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
