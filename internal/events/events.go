// Package events carries fire-and-forget order notifications. The engine
// emits events and never awaits delivery; a failed publish is an operational
// concern, not a checkout failure.
package events

import (
	"context"

	"go.uber.org/zap"
)

// Publisher receives order lifecycle events. Implementations must not block
// the request path.
type Publisher interface {
	OrderCreated(ctx context.Context, orderID string)
	OrderCancelled(ctx context.Context, orderID, reason string)
}

// LogPublisher writes events to the structured log, standing in for a real
// notification transport.
type LogPublisher struct {
	lg *zap.Logger
}

var _ Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a LogPublisher using the given logger.
func NewLogPublisher(lg *zap.Logger) *LogPublisher {
	return &LogPublisher{lg: lg.Named("events")}
}

func (p *LogPublisher) OrderCreated(_ context.Context, orderID string) {
	p.lg.Info("order created", zap.String("order_id", orderID))
}

func (p *LogPublisher) OrderCancelled(_ context.Context, orderID, reason string) {
	p.lg.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)
}

// NopPublisher discards all events.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) OrderCreated(context.Context, string) {}

func (NopPublisher) OrderCancelled(context.Context, string, string) {}
