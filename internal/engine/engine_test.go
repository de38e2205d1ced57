package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubScorer struct {
	mu    sync.Mutex
	calls int
	fn    func(opps []Opportunity) ([]float64, error)
}

func (s *stubScorer) Score(_ context.Context, opps []Opportunity) ([]float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(opps)
	}
	scores := make([]float64, len(opps))
	for i := range scores {
		scores[i] = 0.9
	}
	return scores, nil
}

type stubExecutor struct {
	mu       sync.Mutex
	executed []string
	fn       func(opp Opportunity) (ExecutionResult, error)
	done     chan struct{}
}

func (e *stubExecutor) Execute(_ context.Context, opp Opportunity) (ExecutionResult, error) {
	e.mu.Lock()
	e.executed = append(e.executed, opp.TokenIn)
	e.mu.Unlock()
	defer func() {
		if e.done != nil {
			e.done <- struct{}{}
		}
	}()
	if e.fn != nil {
		return e.fn(opp)
	}
	return ExecutionResult{Success: true, ActualProfit: opp.EstimatedProfit}, nil
}

func (e *stubExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executed)
}

type stubSimulator struct {
	mu        sync.Mutex
	simulated int
	fn        func(opp Opportunity) (SimulationResult, error)
	done      chan struct{}
}

func (s *stubSimulator) Simulate(_ context.Context, opp Opportunity) (SimulationResult, error) {
	s.mu.Lock()
	s.simulated++
	s.mu.Unlock()
	defer func() {
		if s.done != nil {
			s.done <- struct{}{}
		}
	}()
	if s.fn != nil {
		return s.fn(opp)
	}
	return SimulationResult{Success: true, ActualProfit: opp.EstimatedProfit}, nil
}

func (s *stubSimulator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulated
}

type stubLearner struct {
	mu            sync.Mutex
	opportunities int
	outcomes      []string
}

func (l *stubLearner) ObserveOpportunity(Opportunity, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opportunities++
}

func (l *stubLearner) ObserveOutcome(id string, _ float64, _ bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, id)
}

func testOpportunity(profit float64) Opportunity {
	return Opportunity{
		TokenIn:         "SOL",
		TokenOut:        "SOL",
		Hops:            3,
		InitialAmount:   1000,
		GrossProfit:     profit + 5,
		GasCost:         5,
		EstimatedProfit: profit,
		Confidence:      0.9,
	}
}

func testConfig() Config {
	return Config{
		EnableProduction:       true,
		EnableShadow:           true,
		EnableTraining:         true,
		EnablePrevalidation:    true,
		PrevalidationThreshold: 0.6,
		QueueCapacity:          64,
		DiscrepancyAlert:       10,
		StopTimeout:            2 * time.Second,
	}
}

func newTestEngine(t *testing.T, cfg Config, deps Deps) *Engine {
	t.Helper()
	e, err := New(cfg, deps, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{QueueCapacity: 0}, Deps{}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(Config{QueueCapacity: 10, PrevalidationThreshold: 1.5}, Deps{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSubmitAssignsDistinctIDs(t *testing.T) {
	cfg := testConfig()
	cfg.EnableProduction = false
	cfg.EnablePrevalidation = false
	e := newTestEngine(t, cfg, Deps{Scorer: &stubScorer{}})

	const n = 100
	var (
		mu  sync.Mutex
		ids = make(map[string]struct{}, n)
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := e.Submit(context.Background(), testOpportunity(50))
			require.NoError(t, err)
			mu.Lock()
			ids[p.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n, "every packet must get a unique id")
}

func TestPrevalidationGateBlocksProduction(t *testing.T) {
	scorer := &stubScorer{fn: func(opps []Opportunity) ([]float64, error) {
		scores := make([]float64, len(opps))
		for i := range scores {
			scores[i] = 0.2
		}
		return scores, nil
	}}
	executor := &stubExecutor{}
	simulator := &stubSimulator{done: make(chan struct{}, 1)}
	learner := &stubLearner{}

	e := newTestEngine(t, testConfig(), Deps{
		Scorer: scorer, Executor: executor, Simulator: simulator, Learner: learner,
	})
	e.Start()
	defer e.Stop()

	p, err := e.Submit(context.Background(), testOpportunity(50))
	require.NoError(t, err)

	select {
	case <-simulator.done:
	case <-time.After(2 * time.Second):
		t.Fatal("shadow lane never processed the packet")
	}

	require.Eventually(t, func() bool {
		return p.Prevalidation() != nil
	}, 2*time.Second, 10*time.Millisecond)

	verdict := p.Prevalidation()
	assert.False(t, verdict.Passed)
	assert.Contains(t, verdict.Reason, "ml score too low")
	assert.Equal(t, 0, executor.count(), "failed gate must exclude production")
	assert.GreaterOrEqual(t, simulator.count(), 1, "failed gate must still feed shadow")
}

func TestPrevalidatorQueueFullSkipsProduction(t *testing.T) {
	scorer := &stubScorer{fn: func(opps []Opportunity) ([]float64, error) {
		scores := make([]float64, len(opps))
		for i := range scores {
			scores[i] = 0.1
		}
		return scores, nil
	}}
	cfg := testConfig()
	cfg.QueueCapacity = 1

	// Not started: the gate worker never drains, so the second submit
	// overflows the pre-validator queue.
	e := newTestEngine(t, cfg, Deps{Scorer: scorer})

	_, err := e.Submit(context.Background(), testOpportunity(50))
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), testOpportunity(50))
	require.NoError(t, err)

	assert.Equal(t, 0, e.QueueDepth(LaneProduction),
		"an unvetted packet must never reach the production queue")
	assert.Equal(t, 1, e.QueueDepth(LaneShadow))
	assert.Equal(t, 1, e.QueueDepth(LaneTraining))
	assert.Equal(t, uint64(1), e.Stats().Prevalidator.Dropped)
}

func TestProductionExecutesAndPersistsResult(t *testing.T) {
	executor := &stubExecutor{done: make(chan struct{}, 1)}
	cfg := testConfig()
	cfg.EnableShadow = false
	cfg.EnableTraining = false
	cfg.EnablePrevalidation = false

	e := newTestEngine(t, cfg, Deps{Scorer: &stubScorer{}, Executor: executor})
	e.Start()
	defer e.Stop()

	p, err := e.Submit(context.Background(), testOpportunity(50))
	require.NoError(t, err)

	select {
	case <-executor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("production lane never executed")
	}

	require.Eventually(t, func() bool { return p.Production() != nil },
		2*time.Second, 10*time.Millisecond)

	res := p.Production()
	assert.True(t, res.Success)
	assert.Equal(t, 50.0, res.ActualProfit)

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.Production.Processed)
	assert.Equal(t, uint64(1), stats.Production.Succeeded)
	assert.Equal(t, 50.0, stats.Production.TotalProfit)
}

func TestExecutorErrorRecordsFailedResult(t *testing.T) {
	executor := &stubExecutor{
		done: make(chan struct{}, 2),
		fn: func(Opportunity) (ExecutionResult, error) {
			return ExecutionResult{}, errors.New("rpc timeout")
		},
	}
	cfg := testConfig()
	cfg.EnableShadow = false
	cfg.EnableTraining = false
	cfg.EnablePrevalidation = false

	e := newTestEngine(t, cfg, Deps{Scorer: &stubScorer{}, Executor: executor})
	e.Start()
	defer e.Stop()

	p1, err := e.Submit(context.Background(), testOpportunity(50))
	require.NoError(t, err)
	p2, err := e.Submit(context.Background(), testOpportunity(60))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-executor.done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped processing after collaborator error")
		}
	}

	require.Eventually(t, func() bool {
		return p1.Production() != nil && p2.Production() != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, p1.Production().Success)
	assert.Equal(t, "rpc timeout", p1.Production().Err)
	assert.False(t, p2.Production().Success, "loop must survive executor errors")
}

func TestShadowQueueFullDropsWithoutBlocking(t *testing.T) {
	cfg := testConfig()
	cfg.EnableProduction = false
	cfg.EnableTraining = false
	cfg.EnablePrevalidation = false
	cfg.QueueCapacity = 1

	// Not started: nothing drains the shadow queue.
	e := newTestEngine(t, cfg, Deps{Scorer: &stubScorer{}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Submit(context.Background(), testOpportunity(50))
		_, _ = e.Submit(context.Background(), testOpportunity(50))
		_, _ = e.Submit(context.Background(), testOpportunity(50))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shadow enqueue must never block the submitter")
	}

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.Shadow.Dropped)
	assert.Equal(t, 1, e.QueueDepth(LaneShadow))
}

func TestTrainingPrefersProductionOutcome(t *testing.T) {
	learner := &stubLearner{}
	cfg := testConfig()
	cfg.EnableProduction = false
	cfg.EnableShadow = false
	cfg.EnablePrevalidation = false

	e := newTestEngine(t, cfg, Deps{Scorer: &stubScorer{}, Learner: learner})

	p := e.newPacket(testOpportunity(50), 0.9)
	p.setProduction(&ExecutionResult{Success: true, ActualProfit: 42})
	p.setShadow(&SimulationResult{Success: false, ActualProfit: -3})

	e.handleTraining(p, zap.NewNop())

	ack := p.Training()
	require.NotNil(t, ack)
	assert.True(t, ack.OutcomeObserved)

	learner.mu.Lock()
	defer learner.mu.Unlock()
	assert.Equal(t, 1, learner.opportunities)
	require.Len(t, learner.outcomes, 1)
	assert.Equal(t, p.ID, learner.outcomes[0])
}

func TestTrainingWithoutOutcome(t *testing.T) {
	learner := &stubLearner{}
	cfg := testConfig()
	cfg.EnablePrevalidation = false
	e := newTestEngine(t, cfg, Deps{Learner: learner})

	p := e.newPacket(testOpportunity(50), 0.9)
	e.handleTraining(p, zap.NewNop())

	ack := p.Training()
	require.NotNil(t, ack)
	assert.False(t, ack.OutcomeObserved)
	assert.Equal(t, uint64(0), e.Stats().Training.SamplesCollected)
}

func TestSubmitBatchPreservesOrder(t *testing.T) {
	scorer := &stubScorer{fn: func(opps []Opportunity) ([]float64, error) {
		scores := make([]float64, len(opps))
		for i := range scores {
			scores[i] = float64(i) / 10
		}
		return scores, nil
	}}
	cfg := testConfig()
	cfg.EnableProduction = false
	cfg.EnableShadow = false
	cfg.EnableTraining = false
	cfg.EnablePrevalidation = false

	e := newTestEngine(t, cfg, Deps{Scorer: scorer})

	opps := make([]Opportunity, 5)
	for i := range opps {
		opps[i] = testOpportunity(float64(10 * (i + 1)))
	}
	packets, err := e.SubmitBatch(context.Background(), opps)
	require.NoError(t, err)
	require.Len(t, packets, 5)

	for i, p := range packets {
		assert.Equal(t, float64(i)/10, p.MLScore)
		assert.Equal(t, opps[i].EstimatedProfit, p.Opportunity.EstimatedProfit)
	}
}

func TestScorerFailureFallsBackToNeutral(t *testing.T) {
	scorer := &stubScorer{fn: func([]Opportunity) ([]float64, error) {
		return nil, errors.New("model unavailable")
	}}
	cfg := testConfig()
	cfg.EnableProduction = false
	cfg.EnableShadow = false
	cfg.EnableTraining = false
	cfg.EnablePrevalidation = false

	e := newTestEngine(t, cfg, Deps{Scorer: scorer})

	p, err := e.Submit(context.Background(), testOpportunity(50))
	require.NoError(t, err)
	assert.Equal(t, neutralScore, p.MLScore)

	packets, err := e.SubmitBatch(context.Background(), []Opportunity{testOpportunity(1), testOpportunity(2)})
	require.NoError(t, err)
	for _, p := range packets {
		assert.Equal(t, neutralScore, p.MLScore)
	}
}

func TestStopTerminatesWorkers(t *testing.T) {
	simulator := &stubSimulator{}
	e := newTestEngine(t, testConfig(), Deps{
		Scorer: &stubScorer{}, Executor: &stubExecutor{}, Simulator: simulator, Learner: &stubLearner{},
	})
	e.Start()

	_, err := e.Submit(context.Background(), testOpportunity(50))
	require.NoError(t, err)

	start := time.Now()
	e.Stop()
	assert.Less(t, time.Since(start), e.cfg.StopTimeout,
		"workers must exit cooperatively well before the deadline")

	// Idempotent.
	e.Stop()
}

func TestQuickValidate(t *testing.T) {
	cfg := testConfig()
	e := newTestEngine(t, cfg, Deps{})

	cases := []struct {
		name   string
		score  float64
		profit float64
		gas    float64
		passed bool
	}{
		{"passes all checks", 0.9, 100, 10, true},
		{"score below threshold", 0.5, 100, 10, false},
		{"zero profit", 0.9, 0, 10, false},
		{"negative profit", 0.9, -5, 10, false},
		{"gas dominates profit", 0.9, 100, 90, false},
		{"gas at boundary", 0.9, 100, 80, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opp := testOpportunity(tc.profit)
			opp.GasCost = tc.gas
			p := e.newPacket(opp, tc.score)

			verdict := e.quickValidate(context.Background(), p)
			assert.Equal(t, tc.passed, verdict.Passed, verdict.Reason)
		})
	}
}

func TestShadowComparesAgainstProduction(t *testing.T) {
	cfg := testConfig()
	cfg.DiscrepancyAlert = 10
	e := newTestEngine(t, cfg, Deps{
		Simulator: &stubSimulator{fn: func(Opportunity) (SimulationResult, error) {
			return SimulationResult{Success: true, ActualProfit: 30}, nil
		}},
	})

	p := e.newPacket(testOpportunity(50), 0.9)
	p.setProduction(&ExecutionResult{Success: true, ActualProfit: 50})

	e.handleShadow(p, zap.NewNop())

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.Comparisons)
	require.Len(t, stats.RecentCompare, 1)
	assert.Equal(t, 20.0, stats.RecentCompare[0].Discrepancy)
	assert.Equal(t, 50.0, stats.RecentCompare[0].ProductionProfit)
	assert.Equal(t, 30.0, stats.RecentCompare[0].ShadowProfit)
}
