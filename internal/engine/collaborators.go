package engine

import "context"

// Scorer rates opportunities in [0, 1]. Implementations must support both
// single-element and batch calls; the returned slice preserves input order.
type Scorer interface {
	Score(ctx context.Context, opps []Opportunity) ([]float64, error)
}

// Executor performs real on-chain execution for the production lane. The
// call may block for network and confirmation latency.
type Executor interface {
	Execute(ctx context.Context, opp Opportunity) (ExecutionResult, error)
}

// Simulator re-executes an opportunity in-process for the shadow lane. Fast,
// no external I/O expected.
type Simulator interface {
	Simulate(ctx context.Context, opp Opportunity) (SimulationResult, error)
}

// Learner receives training signal from the training lane. Both calls are
// fire-and-forget; the engine consumes no return value.
type Learner interface {
	ObserveOpportunity(opp Opportunity, score float64)
	ObserveOutcome(id string, actualProfit float64, success bool)
}
