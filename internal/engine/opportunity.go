package engine

import (
	"github.com/ruslanmavlyutov/dexarb-bot/internal/registry"
)

// Opportunity is a candidate arbitrage cycle as produced by the upstream
// evaluator. The engine treats it as payload except for the numeric fields
// the pre-validation gate reads.
type Opportunity struct {
	Path            []*registry.Pool
	Hops            int
	TokenIn         string
	TokenOut        string
	DexA            string
	DexB            string
	InitialAmount   float64
	GrossProfit     float64
	GasCost         float64
	EstimatedProfit float64
	Confidence      float64
}

// Defaults applied by Normalize. Kept in one place instead of per-access
// fallbacks scattered through the pipeline.
const (
	defaultConfidence = 0.8
	defaultGasCost    = 20.0
)

// Normalize fills derived and defaulted fields. Called once at submission;
// lane workers can rely on the result without re-checking.
func (o *Opportunity) Normalize() {
	if o.Hops == 0 {
		o.Hops = len(o.Path)
	}
	if o.Confidence <= 0 || o.Confidence > 1 {
		o.Confidence = defaultConfidence
	}
	if o.GasCost < 0 {
		o.GasCost = defaultGasCost
	}
}
