package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsAggregatorCounters(t *testing.T) {
	s := newStatsAggregator(10)

	s.recordProduction(true, 25)
	s.recordProduction(false, -5)
	s.recordShadow(true, 20)
	s.recordPrevalidation(true)
	s.recordPrevalidation(false)
	s.recordPrevalidation(false)
	s.recordTrainingSample()
	s.recordDrop(LaneShadow)
	s.recordDrop(LaneTraining)
	s.recordDrop(LanePrevalidator)

	snap := s.snapshot()
	assert.Equal(t, uint64(2), snap.Production.Processed)
	assert.Equal(t, uint64(1), snap.Production.Succeeded)
	assert.Equal(t, 25.0, snap.Production.TotalProfit, "failed trades must not move the profit total")
	assert.Equal(t, uint64(1), snap.Shadow.Processed)
	assert.Equal(t, uint64(1), snap.Prevalidator.Passed)
	assert.Equal(t, uint64(2), snap.Prevalidator.Failed)
	assert.Equal(t, uint64(3), snap.Prevalidator.Processed)
	assert.Equal(t, uint64(1), snap.Training.SamplesCollected)
	assert.Equal(t, uint64(1), snap.Shadow.Dropped)
	assert.Equal(t, uint64(1), snap.Training.Dropped)
	assert.Equal(t, uint64(1), snap.Prevalidator.Dropped)
}

func TestComparisonLogIsBounded(t *testing.T) {
	const limit = 5
	s := newStatsAggregator(limit)

	for i := 0; i < limit+3; i++ {
		s.addComparison(Discrepancy{PacketID: fmt.Sprintf("opp-%d", i), Discrepancy: float64(i)})
	}

	snap := s.snapshot()
	assert.Equal(t, uint64(limit+3), snap.Comparisons, "total keeps counting past the log bound")
	require.Len(t, snap.RecentCompare, limit)
	assert.Equal(t, "opp-3", snap.RecentCompare[0].PacketID, "oldest records are evicted first")
	assert.Equal(t, "opp-7", snap.RecentCompare[limit-1].PacketID)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newStatsAggregator(10)
	s.addComparison(Discrepancy{PacketID: "opp-1"})

	snap := s.snapshot()
	snap.RecentCompare[0].PacketID = "mutated"

	again := s.snapshot()
	assert.Equal(t, "opp-1", again.RecentCompare[0].PacketID)
}

func TestOpportunityNormalize(t *testing.T) {
	opp := Opportunity{
		Path:            nil,
		EstimatedProfit: 10,
	}
	opp.Normalize()
	assert.Equal(t, defaultConfidence, opp.Confidence)
	assert.Equal(t, 0.0, opp.GasCost, "explicit zero gas cost is kept")

	opp = Opportunity{Confidence: 1.5, GasCost: -1}
	opp.Normalize()
	assert.Equal(t, defaultConfidence, opp.Confidence)
	assert.Equal(t, defaultGasCost, opp.GasCost)
}
