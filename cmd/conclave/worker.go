package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/summarize"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run summarization workers only",
		Long: `Run the summarization worker pool without the signaling hub.

Workers dequeue summarization jobs from redis, run the audio through the
inference model, extract action items, and persist the outcome. Use this to
scale summarization independently of the serve process.`,
		Args: cobra.NoArgs,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	client, err := rt.staged("summarize")
	if err != nil {
		return err
	}

	pipeline := summarize.NewPipeline(
		rt.store,
		summarize.NewFSSource(rt.cfg.Storage.AudioDir),
		client,
		rt.notifier,
		rt.recorder,
		rt.logger,
		rt.cfg.Inference.Timeout,
	)
	pipeline.SetObservability(rt.metrics, rt.tracer)

	workerCfg := summarize.DefaultWorkerConfig()
	workerCfg.Count = rt.cfg.Workers.Count
	pool := summarize.NewPool(rt.queue, pipeline, workerCfg, rt.logger)

	go pollQueueDepth(ctx, rt)

	rt.logger.Info("Worker starting",
		logging.F("workers", rt.cfg.Workers.Count),
		logging.F("model", rt.cfg.Inference.Model))
	pool.Run(ctx)
	return nil
}
