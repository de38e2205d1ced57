package engine

import (
	"sync"
	"time"
)

// LaneStats are the counters kept for one execution lane.
type LaneStats struct {
	Processed   uint64
	Succeeded   uint64
	Dropped     uint64
	TotalProfit float64
}

// PrevalidatorStats are the pre-validation gate counters.
type PrevalidatorStats struct {
	Processed uint64
	Passed    uint64
	Failed    uint64
	Dropped   uint64
}

// TrainingStats are the learning lane counters.
type TrainingStats struct {
	SamplesCollected uint64
	Dropped          uint64
}

// Discrepancy is one production-vs-shadow comparison record.
type Discrepancy struct {
	PacketID          string
	ProductionProfit  float64
	ShadowProfit      float64
	ProductionSuccess bool
	ShadowSuccess     bool
	Discrepancy       float64
	At                time.Time
}

// Stats is a snapshot of all lane counters plus the recent comparison log.
type Stats struct {
	Production    LaneStats
	Shadow        LaneStats
	Prevalidator  PrevalidatorStats
	Training      TrainingStats
	Comparisons   uint64
	RecentCompare []Discrepancy
}

// statsAggregator holds the only mutable state shared for writing across
// lanes. Updates are O(1) and brief, so one mutex for the counters and one
// for the comparison log keep contention negligible.
type statsAggregator struct {
	mu           sync.Mutex
	production   LaneStats
	shadow       LaneStats
	prevalidator PrevalidatorStats
	training     TrainingStats

	cmpMu       sync.Mutex
	comparisons []Discrepancy
	cmpTotal    uint64
	cmpLimit    int
}

func newStatsAggregator(compareLimit int) *statsAggregator {
	return &statsAggregator{cmpLimit: compareLimit}
}

func (s *statsAggregator) recordProduction(success bool, profit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.production.Processed++
	if success {
		s.production.Succeeded++
		s.production.TotalProfit += profit
	}
}

func (s *statsAggregator) recordShadow(success bool, profit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shadow.Processed++
	if success {
		s.shadow.Succeeded++
		s.shadow.TotalProfit += profit
	}
}

func (s *statsAggregator) recordPrevalidation(passed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevalidator.Processed++
	if passed {
		s.prevalidator.Passed++
	} else {
		s.prevalidator.Failed++
	}
}

func (s *statsAggregator) recordTrainingSample() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.training.SamplesCollected++
}

func (s *statsAggregator) recordDrop(lane Lane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch lane {
	case LaneProduction:
		s.production.Dropped++
	case LaneShadow:
		s.shadow.Dropped++
	case LaneTraining:
		s.training.Dropped++
	case LanePrevalidator:
		s.prevalidator.Dropped++
	}
}

// addComparison appends to the bounded discrepancy log, evicting the oldest
// record once the limit is reached.
func (s *statsAggregator) addComparison(d Discrepancy) {
	s.cmpMu.Lock()
	defer s.cmpMu.Unlock()
	s.cmpTotal++
	s.comparisons = append(s.comparisons, d)
	if len(s.comparisons) > s.cmpLimit {
		s.comparisons = s.comparisons[len(s.comparisons)-s.cmpLimit:]
	}
}

func (s *statsAggregator) snapshot() Stats {
	s.mu.Lock()
	out := Stats{
		Production:   s.production,
		Shadow:       s.shadow,
		Prevalidator: s.prevalidator,
		Training:     s.training,
	}
	s.mu.Unlock()

	s.cmpMu.Lock()
	out.Comparisons = s.cmpTotal
	out.RecentCompare = append([]Discrepancy(nil), s.comparisons...)
	s.cmpMu.Unlock()

	return out
}
