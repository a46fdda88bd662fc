package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerQueues string

// workerCmd runs a single symphony-batch drain immediately and exits,
// mirroring the "worker consumes whatever's enqueued" half of a
// beat/worker split (see beat.go's DESIGN.md note on why both
// collapse to the same in-process dispatch here). --queue is accepted
// and logged for operational parity with a queue-backed deployment.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one symphony-batch drain against the given queue list and exit",
	Run: func(cmd *cobra.Command, args []string) {
		logger := setupLogger(logLevel)
		defer logger.Sync()

		queues := strings.Split(workerQueues, ",")
		logger.Info("worker draining", zap.Strings("queues", queues))

		eng, err := buildEngine(logger, configPath, dataDir)
		if err != nil {
			logger.Error("failed to build engine", zap.Error(err))
			os.Exit(exitRuntimeError)
		}

		ctx, cancel := context.WithTimeout(context.Background(), eng.cfg.SymphonyHardTimeout*4)
		defer cancel()

		asOf := time.Now()
		result, err := eng.sched.RunWindow(ctx, asOf, asOf.Add(eng.cfg.WindowLength))
		eng.bus.Stop()
		if err != nil {
			logger.Error("worker drain failed", zap.Error(err))
			os.Exit(exitRuntimeError)
		}

		logger.Info("worker drain complete",
			zap.Int("attempted", result.Attempted), zap.Int("succeeded", result.Succeeded),
			zap.Int("skipped", result.Skipped), zap.Int("failed", result.Failed))
		os.Exit(exitSuccess)
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerQueues, "queue", "default", "comma-separated queue names to drain")
}
