package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/engine"
)

// Executor is a paper-trading execution client. It sleeps to approximate
// confirmation latency and resolves each trade from the opportunity's
// confidence.
type Executor struct {
	rng *rng
}

// Execute resolves the trade. A successful trade lands within ±15% of the
// estimate; a failed one loses the gas cost.
func (e *Executor) Execute(ctx context.Context, opp engine.Opportunity) (engine.ExecutionResult, error) {
	select {
	case <-ctx.Done():
		return engine.ExecutionResult{}, ctx.Err()
	case <-time.After(executionDelay):
	}

	success := e.rng.float64() < opp.Confidence

	var profit float64
	if success {
		profit = opp.EstimatedProfit * e.rng.uniform(0.85, 1.15)
	} else {
		profit = -opp.GasCost
	}

	return engine.ExecutionResult{
		Success:      success,
		ActualProfit: profit,
		GasUsed:      opp.GasCost,
		Reference:    fmt.Sprintf("0x%s", e.rng.hexString(64)),
		At:           time.Now(),
	}, nil
}

// Simulator is the shadow lane's fast in-process re-execution. Same model
// as the executor with tighter jitter and no latency.
type Simulator struct {
	rng *rng
}

// Simulate resolves the trade without any delay.
func (s *Simulator) Simulate(_ context.Context, opp engine.Opportunity) (engine.SimulationResult, error) {
	success := s.rng.float64() < opp.Confidence

	var profit float64
	if success {
		profit = opp.EstimatedProfit * s.rng.uniform(0.9, 1.1)
	} else {
		profit = -opp.GasCost
	}

	return engine.SimulationResult{
		Success:      success,
		ActualProfit: profit,
		At:           time.Now(),
	}, nil
}
