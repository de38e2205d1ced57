package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/events"
)

// Submit scores a single opportunity, wraps it in a packet and routes it
// through the lanes. The call blocks only when the production queue is full
// (intentional backpressure); every other enqueue is best effort.
func (e *Engine) Submit(ctx context.Context, opp Opportunity) (*Packet, error) {
	score := e.scoreOne(ctx, opp)
	p := e.newPacket(opp, score)
	e.route(ctx, p)
	return p, nil
}

// SubmitBatch behaves like Submit for each opportunity but scores the whole
// slice in one collaborator call. The returned packets preserve index
// correspondence with the input.
func (e *Engine) SubmitBatch(ctx context.Context, opps []Opportunity) ([]*Packet, error) {
	scores := e.scoreBatch(ctx, opps)

	packets := make([]*Packet, len(opps))
	for i, opp := range opps {
		p := e.newPacket(opp, scores[i])
		e.route(ctx, p)
		packets[i] = p
	}
	return packets, nil
}

func (e *Engine) newPacket(opp Opportunity, score float64) *Packet {
	opp.Normalize()
	p := &Packet{
		ID:                  e.nextID(),
		Opportunity:         opp,
		CreatedAt:           time.Now(),
		MLScore:             score,
		RouteToProduction:   e.cfg.EnableProduction,
		RouteToShadow:       e.cfg.EnableShadow,
		RouteToTraining:     e.cfg.EnableTraining,
		RouteToPrevalidator: e.cfg.EnablePrevalidation,
	}

	packetsSubmitted.Inc()
	e.publish(&events.OpportunitySubmittedEvent{
		BaseEvent:       events.Base(events.OpportunitySubmitted),
		PacketID:        p.ID,
		MLScore:         p.MLScore,
		Hops:            opp.Hops,
		EstimatedProfit: opp.EstimatedProfit,
	})
	return p
}

// neutralScore is used when the scoring collaborator is absent or failing;
// submission must not depend on it.
const neutralScore = 0.5

func (e *Engine) scoreOne(ctx context.Context, opp Opportunity) float64 {
	if e.deps.Scorer == nil {
		return neutralScore
	}
	scores, err := e.deps.Scorer.Score(ctx, []Opportunity{opp})
	if err != nil || len(scores) != 1 {
		e.logger.Warn("Scoring failed, using neutral score", zap.Error(err))
		return neutralScore
	}
	return scores[0]
}

func (e *Engine) scoreBatch(ctx context.Context, opps []Opportunity) []float64 {
	scores := make([]float64, len(opps))
	for i := range scores {
		scores[i] = neutralScore
	}
	if e.deps.Scorer == nil || len(opps) == 0 {
		return scores
	}

	batch, err := e.deps.Scorer.Score(ctx, opps)
	if err != nil || len(batch) != len(opps) {
		e.logger.Warn("Batch scoring failed, using neutral scores",
			zap.Int("count", len(opps)), zap.Error(err))
		return scores
	}
	return batch
}

// route sends a packet to the pre-validator when enabled, otherwise straight
// to the execution lanes.
func (e *Engine) route(ctx context.Context, p *Packet) {
	if !p.RouteToPrevalidator {
		e.routeToExecution(ctx, p)
		return
	}

	// The pre-validator queue must not suspend the submitter. When it is
	// full the gate fails closed: the unvetted packet skips production and
	// still reaches shadow and training.
	select {
	case e.queues[LanePrevalidator] <- p:
		queueDepth.WithLabelValues(string(LanePrevalidator)).Set(float64(len(e.queues[LanePrevalidator])))
	default:
		e.stats.recordDrop(LanePrevalidator)
		laneDropped.WithLabelValues(string(LanePrevalidator)).Inc()
		e.logger.Warn("Pre-validator queue full, packet skips production",
			zap.String("packet_id", p.ID))
		e.routeToObservers(p)
	}
}

// routeToExecution attempts three independent enqueues. Production is
// blocking with no drop: a full queue is backpressure on the submitter.
// Shadow and training are best effort, a full queue drops the packet from
// that lane only.
func (e *Engine) routeToExecution(ctx context.Context, p *Packet) {
	if p.RouteToProduction && e.passedPrevalidation(p) {
		select {
		case e.queues[LaneProduction] <- p:
			queueDepth.WithLabelValues(string(LaneProduction)).Set(float64(len(e.queues[LaneProduction])))
		case <-e.stop:
			e.logger.Warn("Engine stopping, abandoning production enqueue",
				zap.String("packet_id", p.ID))
		case <-ctx.Done():
			e.logger.Warn("Submitter context canceled during production enqueue",
				zap.String("packet_id", p.ID))
		}
	}

	e.routeToObservers(p)
}

// routeToObservers enqueues onto the non-money-moving lanes only.
func (e *Engine) routeToObservers(p *Packet) {
	if p.RouteToShadow {
		select {
		case e.queues[LaneShadow] <- p:
			queueDepth.WithLabelValues(string(LaneShadow)).Set(float64(len(e.queues[LaneShadow])))
		default:
			e.stats.recordDrop(LaneShadow)
			laneDropped.WithLabelValues(string(LaneShadow)).Inc()
			e.logger.Warn("Shadow queue full, dropping packet from lane",
				zap.String("packet_id", p.ID))
		}
	}

	if p.RouteToTraining {
		select {
		case e.queues[LaneTraining] <- p:
			queueDepth.WithLabelValues(string(LaneTraining)).Set(float64(len(e.queues[LaneTraining])))
		default:
			e.stats.recordDrop(LaneTraining)
			laneDropped.WithLabelValues(string(LaneTraining)).Inc()
			e.logger.Warn("Training queue full, dropping packet from lane",
				zap.String("packet_id", p.ID))
		}
	}
}

// passedPrevalidation gates the production lane. A missing verdict only
// occurs with the gate disabled and counts as a pass; a failed verdict
// excludes the packet from production only.
func (e *Engine) passedPrevalidation(p *Packet) bool {
	v := p.Prevalidation()
	return v == nil || v.Passed
}
