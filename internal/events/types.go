package events

import "time"

// EventType represents the type of event.
type EventType string

const (
	OpportunitySubmitted EventType = "opportunity.submitted"
	TradeExecuted        EventType = "trade.executed"
	ShadowSimulated      EventType = "shadow.simulated"
	DiscrepancyDetected  EventType = "discrepancy.detected"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType { return e.EventType }

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// OpportunitySubmittedEvent is emitted when a packet enters the pipeline.
type OpportunitySubmittedEvent struct {
	BaseEvent
	PacketID        string
	MLScore         float64
	Hops            int
	EstimatedProfit float64
}

// TradeExecutedEvent is emitted after the production lane finishes a packet.
type TradeExecutedEvent struct {
	BaseEvent
	PacketID     string
	Success      bool
	ActualProfit float64
	Reference    string
}

// ShadowSimulatedEvent is emitted after the shadow lane finishes a packet.
type ShadowSimulatedEvent struct {
	BaseEvent
	PacketID     string
	Success      bool
	ActualProfit float64
}

// DiscrepancyDetectedEvent is emitted when production and shadow outcomes for
// the same packet diverge beyond the alert threshold.
type DiscrepancyDetectedEvent struct {
	BaseEvent
	PacketID         string
	ProductionProfit float64
	ShadowProfit     float64
	Discrepancy      float64
}
