package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/metrics"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume pipeline run requests from the queue",
	Long: `Runs as a long-lived service: consumes run requests from RabbitMQ,
executes the requested pipeline mode, and publishes a warehouse-load job
for every run that wrote output. Exposes /health and /metrics on side
ports.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(ctx, 0, 0, true)
	if err != nil {
		return err
	}

	metrics.Init()
	metrics.StartHealthServer(runner.Cfg.HealthPort)
	metrics.StartMetricsServer(runner.Cfg.MetricsPort)

	w := &queue.Worker{Runner: runner}
	return w.Run(ctx)
}
