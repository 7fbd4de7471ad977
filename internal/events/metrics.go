package events

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsPublisher decorates another Publisher with OpenTelemetry counters
// for created and cancelled orders.
type MetricsPublisher struct {
	next      Publisher
	created   metric.Int64Counter
	cancelled metric.Int64Counter
}

var _ Publisher = (*MetricsPublisher)(nil)

// NewMetricsPublisher wraps next with counters registered on the given meter.
func NewMetricsPublisher(meter metric.Meter, next Publisher) (*MetricsPublisher, error) {
	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders successfully created"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.created counter")
	}
	cancelled, err := meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled by buyers or operators"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.cancelled counter")
	}
	return &MetricsPublisher{next: next, created: created, cancelled: cancelled}, nil
}

func (p *MetricsPublisher) OrderCreated(ctx context.Context, orderID string) {
	p.created.Add(ctx, 1)
	p.next.OrderCreated(ctx, orderID)
}

func (p *MetricsPublisher) OrderCancelled(ctx context.Context, orderID, reason string) {
	p.cancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	p.next.OrderCancelled(ctx, orderID, reason)
}
