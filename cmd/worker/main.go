package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"credit-backend/internal/bootstrap"
	"credit-backend/internal/shared/config"
	"credit-backend/internal/shared/metrics"
	"credit-backend/internal/shared/server/respond"
	"credit-backend/internal/shared/telemetry"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.RoleWorker)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()
	if app.InMemory() {
		telemetry.Warn("worker.memory_queue", map[string]any{
			"detail": "no DATABASE_URL; this worker only sees jobs enqueued in its own process",
		})
	}

	if err := run(ctx, app.RunWorker, newMetricsServer(cfg.Worker.MetricsAddr)); err != nil {
		telemetry.Error("worker.exit", map[string]any{"error": err})
		os.Exit(1)
	}
}

// run supervises the worker and the optional metrics listener. Cancelling ctx
// stops both; the worker first finishes its in-flight job.
func run(ctx context.Context, work func(context.Context) error, metricsSrv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return work(gctx) })

	if metricsSrv != nil {
		g.Go(func() error {
			telemetry.Info("worker.metrics.started", map[string]any{"addr": metricsSrv.Addr})
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// newMetricsServer returns nil when addr is empty.
func newMetricsServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", metrics.Handler())
	r.GET("/health", func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": true})
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
