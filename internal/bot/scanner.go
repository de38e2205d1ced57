// internal/bot/scanner.go
package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/engine"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/registry"
)

const (
	scanInterval = 10 * time.Second

	// Sizing for the simulated swap walk over each cycle.
	scanAmountIn = 1000.0
	scanGasCost  = 20.0
	maxBatchSize = 512
)

func (r *Runner) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.scanOnce(ctx)
		}
	}
}

// scanOnce enumerates arbitrage cycles from each configured start token and
// submits them as one batch per token.
func (r *Runner) scanOnce(ctx context.Context) {
	for _, token := range r.config.StartTokens {
		paths := r.registry.FindArbitragePaths(token, r.config.MaxHops)
		if len(paths) == 0 {
			continue
		}

		opps := make([]engine.Opportunity, 0, len(paths))
		for _, path := range paths {
			opp, ok := buildOpportunity(token, path)
			if !ok {
				continue
			}
			opps = append(opps, opp)
			if len(opps) == maxBatchSize {
				break
			}
		}
		if len(opps) == 0 {
			continue
		}

		if _, err := r.engine.SubmitBatch(ctx, opps); err != nil {
			r.logger.Warn("Batch submission failed",
				zap.String("start_token", token),
				zap.Error(err))
			continue
		}
		r.logger.Debug("Submitted opportunity batch",
			zap.String("start_token", token),
			zap.Int("cycles_found", len(paths)),
			zap.Int("submitted", len(opps)))
	}
}

// buildOpportunity walks the cycle with a constant-product swap simulation
// over the pools' reserves to estimate gross profit.
func buildOpportunity(start string, path []*registry.Pool) (engine.Opportunity, bool) {
	amount := scanAmountIn
	token := start
	for _, p := range path {
		next, ok := p.Other(token)
		if !ok {
			return engine.Opportunity{}, false
		}
		amount = swapOut(p, token, amount)
		if amount <= 0 {
			return engine.Opportunity{}, false
		}
		token = next
	}

	gross := amount - scanAmountIn
	return engine.Opportunity{
		Path:            path,
		Hops:            len(path),
		TokenIn:         start,
		TokenOut:        token,
		DexA:            path[0].Dex,
		DexB:            path[len(path)-1].Dex,
		InitialAmount:   scanAmountIn,
		GrossProfit:     gross,
		GasCost:         scanGasCost,
		EstimatedProfit: gross - scanGasCost,
	}, true
}

// swapOut computes the constant-product output of swapping amountIn of token
// through the pool, after the pool fee. Returns 0 when the pool has no usable
// reserves.
func swapOut(p *registry.Pool, tokenIn string, amountIn float64) float64 {
	reserveIn, reserveOut := p.Reserve0, p.Reserve1
	if tokenIn == p.Token1 {
		reserveIn, reserveOut = p.Reserve1, p.Reserve0
	}
	if reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}
	inAfterFee := amountIn * (1 - p.Fee)
	return reserveOut * inAfterFee / (reserveIn + inAfterFee)
}
