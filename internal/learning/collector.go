// Package learning provides an in-process sample collector implementing the
// engine's Learner interface. It buffers scored opportunities, pairs them
// with observed outcomes and tracks prediction accuracy. Retraining is out
// of scope here; a downstream trainer drains the buffer.
package learning

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/engine"
)

// Experience is one buffered observation, optionally labeled with its
// outcome once ObserveOutcome pairs it up.
type Experience struct {
	Opportunity    engine.Opportunity
	PredictedScore float64
	ObservedAt     time.Time

	Labeled      bool
	OutcomeID    string
	ActualProfit float64
	Success      bool
}

// CollectorStats summarizes collector state.
type CollectorStats struct {
	TotalOpportunities uint64
	LabeledSamples     int
	BufferedSamples    int
	CorrectPredictions uint64
}

// Collector is a ring-buffered Learner. Oldest experiences are evicted once
// the buffer is full.
type Collector struct {
	mu       sync.Mutex
	buffer   []Experience
	capacity int

	totalOpportunities uint64
	correctPredictions uint64

	logger *zap.Logger
}

// NewCollector creates a collector holding at most capacity experiences.
func NewCollector(capacity int, logger *zap.Logger) *Collector {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Collector{
		capacity: capacity,
		logger:   logger.Named("learning"),
	}
}

// ObserveOpportunity buffers a scored opportunity.
func (c *Collector) ObserveOpportunity(opp engine.Opportunity, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = append(c.buffer, Experience{
		Opportunity:    opp,
		PredictedScore: score,
		ObservedAt:     time.Now(),
	})
	if len(c.buffer) > c.capacity {
		c.buffer = c.buffer[len(c.buffer)-c.capacity:]
	}
	c.totalOpportunities++
}

// ObserveOutcome labels the most recent unlabeled experience with the
// observed result. A prediction counts as correct when a score at or above
// 0.5 met a successful outcome, or a score below 0.5 met a failed one.
func (c *Collector) ObserveOutcome(id string, actualProfit float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.buffer) - 1; i >= 0; i-- {
		exp := &c.buffer[i]
		if exp.Labeled {
			continue
		}
		exp.Labeled = true
		exp.OutcomeID = id
		exp.ActualProfit = actualProfit
		exp.Success = success

		predictedPositive := exp.PredictedScore >= 0.5
		if predictedPositive == success {
			c.correctPredictions++
		}
		return
	}

	c.logger.Debug("Outcome with no matching buffered opportunity",
		zap.String("id", id))
}

// Drain returns and removes all labeled experiences, leaving unlabeled ones
// waiting for their outcomes.
func (c *Collector) Drain() []Experience {
	c.mu.Lock()
	defer c.mu.Unlock()

	var labeled []Experience
	remaining := c.buffer[:0]
	for _, exp := range c.buffer {
		if exp.Labeled {
			labeled = append(labeled, exp)
		} else {
			remaining = append(remaining, exp)
		}
	}
	c.buffer = remaining
	return labeled
}

// Stats returns a snapshot of collector counters.
func (c *Collector) Stats() CollectorStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	labeled := 0
	for _, exp := range c.buffer {
		if exp.Labeled {
			labeled++
		}
	}
	return CollectorStats{
		TotalOpportunities: c.totalOpportunities,
		LabeledSamples:     labeled,
		BufferedSamples:    len(c.buffer),
		CorrectPredictions: c.correctPredictions,
	}
}
