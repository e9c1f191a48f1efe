package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/pkg/actor"
	"github.com/conclave-hq/conclave/pkg/buildinfo"
	"github.com/conclave-hq/conclave/pkg/db"
	"github.com/conclave-hq/conclave/pkg/logging"
	signalhub "github.com/conclave-hq/conclave/pkg/signal"
	"github.com/conclave-hq/conclave/pkg/summarize"
)

const (
	shutdownTimeout   = 10 * time.Second
	queueDepthPollGap = 15 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the signaling hub and summarization workers",
		Long: `Run the Conclave server: the websocket signaling hub, the
summarization worker pool, and the health and metrics endpoints.

Rooms are keyed by meeting id. When the last participant leaves a room that
produced audio, the recording is attached to the meeting and a summarization
job is enqueued automatically.

Endpoints:
  /ws?roomId=<meeting-id>&userId=<user>   websocket signaling + audio chunks
  /healthz                                postgres and redis health
  /version                                build information
  /metrics (on the metrics address)       prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	log := rt.logger.With(logging.F("component", "serve"))

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

	controller := rt.controller()

	registry := signalhub.NewRegistry(rt.logger)
	hub := signalhub.NewHub(registry, signalhub.NewFSRecorder(rt.cfg.Storage.AudioDir), rt.logger)
	hub.SetMetrics(rt.metrics)
	hub.OnRoomClosed = func(ctx context.Context, roomID, ref string) {
		ctx = actor.WithIdentity(ctx, actor.SystemIdentity)
		if _, err := controller.AttachAudio(ctx, roomID, ref); err != nil {
			log.Error("Failed to attach recording",
				logging.Err(err),
				logging.F("meeting_id", roomID),
				logging.F("audio_ref", ref))
		}
	}

	resolver := actor.NewTokenResolver(rt.cfg.Server.JWTSecret)
	mux := http.NewServeMux()
	mux.Handle("/ws", withActor(resolver, http.HandlerFunc(hub.HandleWS)))
	mux.HandleFunc("/healthz", healthHandler(rt))
	mux.HandleFunc("/version", buildinfo.Handler("conclave"))

	apiSrv := &http.Server{Addr: rt.cfg.Server.ListenAddress, Handler: mux}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: rt.cfg.Server.MetricsAddress, Handler: metricsMux}

	go pool.Run(ctx)
	go pollQueueDepth(ctx, rt)

	errCh := make(chan error, 2)
	go func() { errCh <- apiSrv.ListenAndServe() }()
	go func() { errCh <- metricsSrv.ListenAndServe() }()

	log.Info("Conclave serving",
		logging.F("listen", rt.cfg.Server.ListenAddress),
		logging.F("metrics", rt.cfg.Server.MetricsAddress),
		logging.F("workers", rt.cfg.Workers.Count),
		logging.F("model", rt.cfg.Inference.Model))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			shutdownServers(apiSrv, metricsSrv)
			return err
		}
	}

	log.Info("Shutting down")
	shutdownServers(apiSrv, metricsSrv)
	log.Info("Stopped",
		logging.F("processed", pool.Processed()),
		logging.F("failed", pool.Failed()))
	return nil
}

func shutdownServers(servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(ctx)
	}
}

// withActor resolves the bearer token into an identity on the request
// context. Requests without a token resolve to the default operator.
func withActor(resolver *actor.TokenResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := resolver.Resolve(req.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req.WithContext(actor.WithIdentity(req.Context(), id)))
	})
}

// pollQueueDepth keeps the queue depth gauge current.
func pollQueueDepth(ctx context.Context, rt *runtime) {
	ticker := time.NewTicker(queueDepthPollGap)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth, err := rt.queue.Depth(ctx); err == nil {
				rt.metrics.SummaryQueueDepth.Set(float64(depth))
			}
		}
	}
}

func healthHandler(rt *runtime) http.HandlerFunc {
	type component struct {
		Healthy   bool   `json:"healthy"`
		LatencyMs int64  `json:"latency_ms"`
		Error     string `json:"error,omitempty"`
	}
	type health struct {
		Status   string    `json:"status"`
		Database component `json:"database"`
		Redis    component `json:"redis"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		out := health{Status: "ok"}

		dbStatus := db.Check(ctx, rt.pool)
		out.Database.Healthy = dbStatus.Healthy
		out.Database.LatencyMs = dbStatus.Latency.Milliseconds()
		if dbStatus.Error != nil {
			out.Database.Error = dbStatus.Error.Error()
		}

		start := time.Now()
		if err := rt.rdb.Ping(ctx).Err(); err != nil {
			out.Redis.Error = err.Error()
		} else {
			out.Redis.Healthy = true
		}
		out.Redis.LatencyMs = time.Since(start).Milliseconds()

		code := http.StatusOK
		if !out.Database.Healthy || !out.Redis.Healthy {
			out.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(out)
	}
}
