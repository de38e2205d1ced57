// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/config"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/engine"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/events"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/learning"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/paper"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/registry"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage/postgres"
)

const (
	eventBusBuffer   = 256
	learnerCapacity  = 4096
	statsInterval    = 30 * time.Second
	shutdownDeadline = 10 * time.Second
)

// Runner wires the registry, the engine and the surrounding
// infrastructure into one supervised process.
type Runner struct {
	logger     *zap.Logger
	config     *config.Config
	registry   *registry.Registry
	engine     *engine.Engine
	bus        *events.Bus
	store      storage.Store
	learner    *learning.Collector
	shutdownCh chan os.Signal
}

// NewRunner builds all components from the configuration. Collaborators are
// the paper (simulated) implementations; swapping in live ones is a matter
// of replacing the Deps here.
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	feed := registry.NewFileFeed(cfg.RegistryPath, logger)
	reg := registry.New(feed, logger)

	bus := events.NewBus(logger, eventBusBuffer)
	events.RegisterDiscrepancyAlerts(bus, logger)

	var store storage.Store
	if cfg.PostgresURL != "" {
		var err error
		store, err = postgres.NewStore(cfg.PostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	executor, simulator, scorer := paper.New()
	learner := learning.NewCollector(learnerCapacity, logger)

	eng, err := engine.New(engine.Config{
		EnableProduction:       cfg.EnableProduction,
		EnableShadow:           cfg.EnableShadow,
		EnableTraining:         cfg.EnableTraining,
		EnablePrevalidation:    cfg.EnablePrevalidation,
		PrevalidationThreshold: cfg.PrevalidationThreshold,
		QueueCapacity:          cfg.QueueCapacity,
		DiscrepancyAlert:       cfg.DiscrepancyAlert,
	}, engine.Deps{
		Scorer:    scorer,
		Executor:  executor,
		Simulator: simulator,
		Learner:   learner,
		Bus:       bus,
		Store:     store,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		logger:     logger,
		config:     cfg,
		registry:   reg,
		engine:     eng,
		bus:        bus,
		store:      store,
		learner:    learner,
		shutdownCh: make(chan os.Signal, 1),
	}, nil
}

// Run starts all loops and blocks until the context is cancelled or a
// termination signal arrives.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("📡 Signal received: " + sig.String())
			cancel()
		case <-runCtx.Done():
		}
	}()

	if err := r.registry.Refresh(runCtx); err != nil {
		return fmt.Errorf("initial registry refresh failed: %w", err)
	}
	snap := r.registry.Snapshot()
	r.logger.Info("📋 Pool registry loaded",
		zap.Int("pools", snap.Pools),
		zap.Int("tokens", snap.Tokens),
		zap.Int("edges", snap.Edges))

	r.engine.Start()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return r.refreshLoop(gCtx) })
	g.Go(func() error { return r.scanLoop(gCtx) })
	g.Go(func() error { return r.statsLoop(gCtx) })
	if r.config.MetricsAddr != "" {
		g.Go(func() error { return r.serveMetrics(gCtx) })
	}

	err := g.Wait()
	r.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runner) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.config.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.registry.Refresh(ctx); err != nil {
				r.logger.Warn("Registry refresh failed", zap.Error(err))
			}
		}
	}
}

func (r *Runner) statsLoop(ctx context.Context) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := r.engine.Stats()
			r.logger.Info("📊 Engine stats",
				zap.Uint64("production_processed", stats.Production.Processed),
				zap.Uint64("production_succeeded", stats.Production.Succeeded),
				zap.Float64("production_profit", stats.Production.TotalProfit),
				zap.Uint64("shadow_processed", stats.Shadow.Processed),
				zap.Uint64("shadow_dropped", stats.Shadow.Dropped),
				zap.Uint64("preval_passed", stats.Prevalidator.Passed),
				zap.Uint64("preval_failed", stats.Prevalidator.Failed),
				zap.Uint64("training_samples", stats.Training.SamplesCollected),
				zap.Uint64("comparisons", stats.Comparisons))
		}
	}
}

func (r *Runner) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: r.config.MetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = server.Shutdown(shutCtx)
	}()

	r.logger.Info("📈 Metrics server listening", zap.String("addr", r.config.MetricsAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (r *Runner) shutdown() {
	r.engine.Stop()

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	if err := r.bus.Shutdown(shutCtx); err != nil {
		r.logger.Warn("Event bus shutdown incomplete", zap.Error(err))
	}

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("Failed to close storage", zap.Error(err))
		}
	}

	lstats := r.learner.Stats()
	r.logger.Info("👋 Shutting down gracefully",
		zap.Int("training_samples_buffered", lstats.BufferedSamples),
		zap.Int("training_samples_labeled", lstats.LabeledSamples))

	if err := r.logger.Sync(); err != nil {
		if !os.IsNotExist(err) &&
			err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
			fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
		}
	}
}
