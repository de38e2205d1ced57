package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/events"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage"
)

// Config is the engine's recognized option surface.
type Config struct {
	EnableProduction    bool
	EnableShadow        bool
	EnableTraining      bool
	EnablePrevalidation bool

	// PrevalidationThreshold is the minimum ML score to pass the gate.
	PrevalidationThreshold float64

	// QueueCapacity bounds each lane's queue.
	QueueCapacity int

	// DiscrepancyAlert is the production-vs-shadow profit gap above which a
	// DiscrepancyDetected event is published. Zero disables alerting.
	DiscrepancyAlert float64

	// CompareLogLimit bounds the in-memory discrepancy log.
	CompareLogLimit int

	// StopTimeout bounds the wait for worker goroutines to exit on Stop.
	StopTimeout time.Duration
}

// Deps are the engine's collaborators. Scorer, Executor, Simulator and
// Learner are required for their respective lanes; Bus and Store are
// optional observability sinks.
type Deps struct {
	Scorer    Scorer
	Executor  Executor
	Simulator Simulator
	Learner   Learner
	Bus       *events.Bus
	Store     storage.Store
}

// Engine fans each submitted opportunity out to four independent lane
// workers: pre-validation, production execution, shadow simulation and
// training. One goroutine per lane, one bounded queue per lane, no dynamic
// scaling.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	queues map[Lane]chan *Packet
	stats  *statsAggregator

	ctx     context.Context
	cancel  context.CancelFunc
	stop    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	idSeq   atomic.Uint64
}

// New validates the configuration and builds an engine. An invalid queue
// capacity is the only fatal startup condition; it fails here, before any
// worker starts.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Engine, error) {
	if cfg.QueueCapacity <= 0 {
		return nil, fmt.Errorf("invalid queue capacity %d", cfg.QueueCapacity)
	}
	if cfg.PrevalidationThreshold < 0 || cfg.PrevalidationThreshold > 1 {
		return nil, fmt.Errorf("prevalidation threshold %.3f outside [0,1]", cfg.PrevalidationThreshold)
	}
	if cfg.CompareLogLimit <= 0 {
		cfg.CompareLogLimit = 1000
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("engine"),
		queues: map[Lane]chan *Packet{
			LanePrevalidator: make(chan *Packet, cfg.QueueCapacity),
			LaneProduction:   make(chan *Packet, cfg.QueueCapacity),
			LaneShadow:       make(chan *Packet, cfg.QueueCapacity),
			LaneTraining:     make(chan *Packet, cfg.QueueCapacity),
		},
		stats:  newStatsAggregator(cfg.CompareLogLimit),
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
	}
	return e, nil
}

// Start launches one worker goroutine per enabled lane.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Warn("Engine already running")
		return
	}

	type laneWorker struct {
		lane    Lane
		enabled bool
		run     func()
	}

	workers := []laneWorker{
		{LanePrevalidator, e.cfg.EnablePrevalidation, e.prevalidationWorker},
		{LaneProduction, e.cfg.EnableProduction, e.productionWorker},
		{LaneShadow, e.cfg.EnableShadow, e.shadowWorker},
		{LaneTraining, e.cfg.EnableTraining, e.trainingWorker},
	}

	started := 0
	for _, w := range workers {
		if !w.enabled {
			continue
		}
		e.wg.Add(1)
		go w.run()
		started++
	}

	e.logger.Info("Engine started",
		zap.Int("lanes", started),
		zap.Bool("production", e.cfg.EnableProduction),
		zap.Bool("shadow", e.cfg.EnableShadow),
		zap.Bool("training", e.cfg.EnableTraining),
		zap.Bool("prevalidation", e.cfg.EnablePrevalidation),
		zap.Float64("prevalidation_threshold", e.cfg.PrevalidationThreshold))
}

// Stop cooperatively shuts the engine down: workers observe the stop signal
// and exit; the join is bounded by StopTimeout. Packets still queued are
// abandoned without persistence.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}

	e.logger.Info("Stopping all lanes")
	close(e.stop)
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("All lanes stopped")
	case <-time.After(e.cfg.StopTimeout):
		e.logger.Warn("Timed out waiting for lane workers to exit",
			zap.Duration("timeout", e.cfg.StopTimeout))
	}
}

// Stats returns a snapshot of the per-lane counters and the recent
// discrepancy log.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// QueueDepth reports the number of packets waiting in a lane's queue.
func (e *Engine) QueueDepth(lane Lane) int {
	return len(e.queues[lane])
}

// nextID assigns a process-unique packet id. A monotonic counter is enough;
// there is no cryptographic requirement.
func (e *Engine) nextID() string {
	return fmt.Sprintf("opp-%d-%06d", time.Now().UnixMilli(), e.idSeq.Add(1))
}

func (e *Engine) publish(event events.Event) {
	if e.deps.Bus == nil {
		return
	}
	// Delivery is best effort; a full bus never stalls a lane.
	_ = e.deps.Bus.Publish(event)
}
