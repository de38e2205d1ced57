package paper

import (
	"context"
	"math"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/engine"
)

// Scorer is a deterministic heuristic stand-in for the ML scoring model.
// It blends the profit/gas ratio, confidence, hop count and pool depth into
// a score in [0, 1].
type Scorer struct{}

// Score rates each opportunity independently; batch calls are just the
// element-wise application.
func (s *Scorer) Score(_ context.Context, opps []engine.Opportunity) ([]float64, error) {
	scores := make([]float64, len(opps))
	for i, opp := range opps {
		scores[i] = scoreOne(opp)
	}
	return scores, nil
}

func scoreOne(opp engine.Opportunity) float64 {
	// Profit after gas, squashed so diminishing returns kick in around $50.
	netProfit := opp.EstimatedProfit - opp.GasCost
	profitScore := 1.0 / (1.0 + math.Exp(-netProfit/50.0))

	// Shorter cycles carry less slippage and revert risk.
	hopPenalty := 1.0
	if opp.Hops > 2 {
		hopPenalty = 1.0 / float64(opp.Hops-1)
	}

	// Deep pools move less under our own trade.
	depthScore := 0.5
	if n := len(opp.Path); n > 0 {
		minTVL := math.MaxFloat64
		for _, pool := range opp.Path {
			if pool.TVL < minTVL {
				minTVL = pool.TVL
			}
		}
		depthScore = math.Min(1.0, minTVL/5_000_000)
	}

	score := 0.4*profitScore + 0.3*opp.Confidence + 0.2*depthScore + 0.1*hopPenalty
	return math.Max(0, math.Min(1, score))
}
