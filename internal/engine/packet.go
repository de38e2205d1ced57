package engine

import (
	"sync/atomic"
	"time"
)

// Lane identifies one of the four processing pipelines.
type Lane string

const (
	LaneProduction   Lane = "production"
	LaneShadow       Lane = "shadow"
	LaneTraining     Lane = "training"
	LanePrevalidator Lane = "prevalidator"
)

// ValidationResult is the pre-validation gate's verdict. Failing the gate is
// a normal outcome, not an error: the packet is only excluded from the
// production lane.
type ValidationResult struct {
	Passed bool
	Reason string
	Score  float64
}

// ExecutionResult is the production lane's outcome.
type ExecutionResult struct {
	Success      bool
	ActualProfit float64
	Reference    string
	GasUsed      float64
	Err          string
	At           time.Time
}

// SimulationResult is the shadow lane's outcome.
type SimulationResult struct {
	Success      bool
	ActualProfit float64
	Err          string
	At           time.Time
}

// TrainingAck records that the learning collaborator observed the packet.
type TrainingAck struct {
	OutcomeObserved bool
	At              time.Time
}

// Packet threads a single opportunity through the lanes. Each result field
// has exactly one writing lane and is never mutated after being set; the
// atomic pointers make the shadow lane's cross-read of the production result
// safe without a lock.
type Packet struct {
	ID          string
	Opportunity Opportunity
	CreatedAt   time.Time
	MLScore     float64

	RouteToProduction   bool
	RouteToShadow       bool
	RouteToTraining     bool
	RouteToPrevalidator bool

	prevalidation atomic.Pointer[ValidationResult]
	production    atomic.Pointer[ExecutionResult]
	shadow        atomic.Pointer[SimulationResult]
	training      atomic.Pointer[TrainingAck]
}

func (p *Packet) setPrevalidation(r *ValidationResult) { p.prevalidation.Store(r) }
func (p *Packet) setProduction(r *ExecutionResult)     { p.production.Store(r) }
func (p *Packet) setShadow(r *SimulationResult)        { p.shadow.Store(r) }
func (p *Packet) setTraining(r *TrainingAck)           { p.training.Store(r) }

// Prevalidation returns the gate verdict, or nil if the packet skipped the
// pre-validator.
func (p *Packet) Prevalidation() *ValidationResult { return p.prevalidation.Load() }

// Production returns the production result, or nil while pending.
func (p *Packet) Production() *ExecutionResult { return p.production.Load() }

// Shadow returns the shadow result, or nil while pending.
func (p *Packet) Shadow() *SimulationResult { return p.shadow.Load() }

// Training returns the training acknowledgement, or nil while pending.
func (p *Packet) Training() *TrainingAck { return p.training.Load() }
