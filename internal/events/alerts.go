package events

import (
	"context"

	"go.uber.org/zap"
)

// RegisterDiscrepancyAlerts wires a log-based alert onto discrepancy events.
// Returns the unsubscribe function.
func RegisterDiscrepancyAlerts(bus *Bus, logger *zap.Logger) func() {
	alert := logger.Named("alerts")

	return bus.SubscribeFunc(DiscrepancyDetected, func(_ context.Context, event Event) error {
		e, ok := event.(*DiscrepancyDetectedEvent)
		if !ok {
			return nil
		}
		alert.Warn("Large production/shadow discrepancy",
			zap.String("packet_id", e.PacketID),
			zap.Float64("production_profit", e.ProductionProfit),
			zap.Float64("shadow_profit", e.ShadowProfit),
			zap.Float64("discrepancy", e.Discrepancy))
		return nil
	})
}
