package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/events"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage/models"
)

const persistTimeout = 5 * time.Second

// prevalidationWorker runs the synchronous gate ahead of the production
// lane. A failed gate is a normal outcome: the packet still reaches shadow
// and training so the simulation side calibrates against all traffic, gated
// or not.
func (e *Engine) prevalidationWorker() {
	defer e.wg.Done()
	logger := e.logger.Named("prevalidator")
	logger.Info("Lane worker started")

	for {
		select {
		case <-e.stop:
			logger.Info("Lane worker stopped")
			return
		case p := <-e.queues[LanePrevalidator]:
			queueDepth.WithLabelValues(string(LanePrevalidator)).Set(float64(len(e.queues[LanePrevalidator])))
			e.handlePrevalidation(p, logger)
		}
	}
}

func (e *Engine) handlePrevalidation(p *Packet, logger *zap.Logger) {
	verdict := e.quickValidate(e.ctx, p)
	p.setPrevalidation(verdict)

	e.stats.recordPrevalidation(verdict.Passed)
	outcome := "passed"
	if !verdict.Passed {
		outcome = "failed"
		logger.Debug("Pre-validation failed",
			zap.String("packet_id", p.ID),
			zap.String("reason", verdict.Reason))
	}
	laneProcessed.WithLabelValues(string(LanePrevalidator), outcome).Inc()

	// Causal ordering for this packet: the gate itself routes onward before
	// picking up its next packet.
	e.routeToExecution(e.ctx, p)
}

// quickValidate applies the gate checks in order: scoring threshold, then
// profit sanity, then the gas/profit ratio.
func (e *Engine) quickValidate(ctx context.Context, p *Packet) *ValidationResult {
	score := p.MLScore
	if e.deps.Scorer != nil {
		scores, err := e.deps.Scorer.Score(ctx, []Opportunity{p.Opportunity})
		if err != nil {
			e.logger.Warn("Scorer failed during pre-validation",
				zap.String("packet_id", p.ID), zap.Error(err))
			return &ValidationResult{
				Passed: false,
				Reason: fmt.Sprintf("scorer error: %v", err),
			}
		}
		if len(scores) == 1 {
			score = scores[0]
		}
	}

	if score < e.cfg.PrevalidationThreshold {
		return &ValidationResult{
			Passed: false,
			Reason: fmt.Sprintf("ml score too low: %.3f < %.3f", score, e.cfg.PrevalidationThreshold),
			Score:  score,
		}
	}

	opp := p.Opportunity
	if opp.EstimatedProfit <= 0 {
		return &ValidationResult{
			Passed: false,
			Reason: fmt.Sprintf("non-positive estimated profit: %.2f", opp.EstimatedProfit),
			Score:  score,
		}
	}

	if opp.GasCost > opp.EstimatedProfit*0.8 {
		return &ValidationResult{
			Passed: false,
			Reason: fmt.Sprintf("gas cost too high: %.2f vs profit %.2f", opp.GasCost, opp.EstimatedProfit),
			Score:  score,
		}
	}

	return &ValidationResult{Passed: true, Reason: "all checks passed", Score: score}
}

// productionWorker executes real trades. The Execute call may block for
// chain confirmation latency; collaborator errors are recorded as failed
// results and never kill the loop.
func (e *Engine) productionWorker() {
	defer e.wg.Done()
	logger := e.logger.Named("production")
	logger.Info("Lane worker started")

	for {
		select {
		case <-e.stop:
			logger.Info("Lane worker stopped")
			return
		case p := <-e.queues[LaneProduction]:
			queueDepth.WithLabelValues(string(LaneProduction)).Set(float64(len(e.queues[LaneProduction])))
			e.handleProduction(p, logger)
		}
	}
}

func (e *Engine) handleProduction(p *Packet, logger *zap.Logger) {
	start := time.Now()
	res, err := e.deps.Executor.Execute(e.ctx, p.Opportunity)
	executionLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("Execution failed",
			zap.String("packet_id", p.ID), zap.Error(err))
		res = ExecutionResult{Success: false, Err: err.Error()}
	}
	if res.At.IsZero() {
		res.At = time.Now()
	}
	p.setProduction(&res)

	e.stats.recordProduction(res.Success, res.ActualProfit)
	outcome := "success"
	if !res.Success {
		outcome = "failed"
	}
	laneProcessed.WithLabelValues(string(LaneProduction), outcome).Inc()

	logger.Info("Trade executed",
		zap.String("packet_id", p.ID),
		zap.Bool("success", res.Success),
		zap.Float64("actual_profit", res.ActualProfit),
		zap.String("reference", res.Reference))

	e.publish(&events.TradeExecutedEvent{
		BaseEvent:    events.Base(events.TradeExecuted),
		PacketID:     p.ID,
		Success:      res.Success,
		ActualProfit: res.ActualProfit,
		Reference:    res.Reference,
	})

	e.persistExecution(p, &res, logger)
}

func (e *Engine) persistExecution(p *Packet, res *ExecutionResult, logger *zap.Logger) {
	if e.deps.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := &models.ExecutionRecord{
		PacketID:        p.ID,
		Success:         res.Success,
		EstimatedProfit: p.Opportunity.EstimatedProfit,
		ActualProfit:    res.ActualProfit,
		GasUsed:         res.GasUsed,
		Reference:       res.Reference,
		TokenIn:         p.Opportunity.TokenIn,
		TokenOut:        p.Opportunity.TokenOut,
		Hops:            p.Opportunity.Hops,
		ErrorMessage:    res.Err,
	}
	if err := e.deps.Store.SaveExecution(ctx, rec); err != nil {
		logger.Warn("Failed to persist execution record",
			zap.String("packet_id", p.ID), zap.Error(err))
	}
}

// shadowWorker re-runs every opportunity through the in-process simulator.
// When a production result already exists for the packet it records the
// profit discrepancy; the comparison is observability only and never feeds
// back into execution.
func (e *Engine) shadowWorker() {
	defer e.wg.Done()
	logger := e.logger.Named("shadow")
	logger.Info("Lane worker started")

	for {
		select {
		case <-e.stop:
			logger.Info("Lane worker stopped")
			return
		case p := <-e.queues[LaneShadow]:
			queueDepth.WithLabelValues(string(LaneShadow)).Set(float64(len(e.queues[LaneShadow])))
			e.handleShadow(p, logger)
		}
	}
}

func (e *Engine) handleShadow(p *Packet, logger *zap.Logger) {
	res, err := e.deps.Simulator.Simulate(e.ctx, p.Opportunity)
	if err != nil {
		logger.Error("Simulation failed",
			zap.String("packet_id", p.ID), zap.Error(err))
		res = SimulationResult{Success: false, Err: err.Error()}
	}
	if res.At.IsZero() {
		res.At = time.Now()
	}
	p.setShadow(&res)

	e.stats.recordShadow(res.Success, res.ActualProfit)
	outcome := "success"
	if !res.Success {
		outcome = "failed"
	}
	laneProcessed.WithLabelValues(string(LaneShadow), outcome).Inc()

	e.publish(&events.ShadowSimulatedEvent{
		BaseEvent:    events.Base(events.ShadowSimulated),
		PacketID:     p.ID,
		Success:      res.Success,
		ActualProfit: res.ActualProfit,
	})

	if prod := p.Production(); prod != nil {
		e.compareProductionVsShadow(p, prod, &res, logger)
	}
}

func (e *Engine) compareProductionVsShadow(p *Packet, prod *ExecutionResult, shadow *SimulationResult, logger *zap.Logger) {
	d := Discrepancy{
		PacketID:          p.ID,
		ProductionProfit:  prod.ActualProfit,
		ShadowProfit:      shadow.ActualProfit,
		ProductionSuccess: prod.Success,
		ShadowSuccess:     shadow.Success,
		Discrepancy:       math.Abs(prod.ActualProfit - shadow.ActualProfit),
		At:                time.Now(),
	}
	e.stats.addComparison(d)
	shadowDiscrepancy.Observe(d.Discrepancy)

	if e.cfg.DiscrepancyAlert > 0 && d.Discrepancy > e.cfg.DiscrepancyAlert {
		e.publish(&events.DiscrepancyDetectedEvent{
			BaseEvent:        events.Base(events.DiscrepancyDetected),
			PacketID:         p.ID,
			ProductionProfit: d.ProductionProfit,
			ShadowProfit:     d.ShadowProfit,
			Discrepancy:      d.Discrepancy,
		})
	}

	if e.deps.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		rec := &models.DiscrepancyRecord{
			PacketID:          d.PacketID,
			ProductionProfit:  d.ProductionProfit,
			ShadowProfit:      d.ShadowProfit,
			Discrepancy:       d.Discrepancy,
			ProductionSuccess: d.ProductionSuccess,
			ShadowSuccess:     d.ShadowSuccess,
		}
		if err := e.deps.Store.SaveDiscrepancy(ctx, rec); err != nil {
			logger.Warn("Failed to persist discrepancy record",
				zap.String("packet_id", p.ID), zap.Error(err))
		}
	}
}

// trainingWorker forwards observations to the learning collaborator. No
// retraining logic lives here; it is entirely delegated.
func (e *Engine) trainingWorker() {
	defer e.wg.Done()
	logger := e.logger.Named("training")
	logger.Info("Lane worker started")

	for {
		select {
		case <-e.stop:
			logger.Info("Lane worker stopped")
			return
		case p := <-e.queues[LaneTraining]:
			queueDepth.WithLabelValues(string(LaneTraining)).Set(float64(len(e.queues[LaneTraining])))
			e.handleTraining(p, logger)
		}
	}
}

func (e *Engine) handleTraining(p *Packet, logger *zap.Logger) {
	if e.deps.Learner == nil {
		p.setTraining(&TrainingAck{At: time.Now()})
		return
	}

	e.deps.Learner.ObserveOpportunity(p.Opportunity, p.MLScore)

	// Production result preferred over shadow as the outcome signal.
	var (
		profit   float64
		success  bool
		observed bool
	)
	if prod := p.Production(); prod != nil {
		profit, success, observed = prod.ActualProfit, prod.Success, true
	} else if shadow := p.Shadow(); shadow != nil {
		profit, success, observed = shadow.ActualProfit, shadow.Success, true
	}

	if observed {
		e.deps.Learner.ObserveOutcome(p.ID, profit, success)
		e.stats.recordTrainingSample()
		laneProcessed.WithLabelValues(string(LaneTraining), "observed").Inc()
	} else {
		laneProcessed.WithLabelValues(string(LaneTraining), "no_outcome").Inc()
		logger.Debug("No outcome available for training observation",
			zap.String("packet_id", p.ID))
	}

	p.setTraining(&TrainingAck{OutcomeObserved: observed, At: time.Now()})
}
