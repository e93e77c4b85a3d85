package handler

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Metrics holds the handler-level instruments: order placement and webhook
// delivery counters plus a tracer for asynchronous webhook processing, which
// runs outside the instrumented request span.
type Metrics struct {
	tracer        trace.Tracer
	ordersPlaced  metric.Int64Counter
	webhookEvents metric.Int64Counter
}

// NewMetrics builds the instruments from the given providers.
func NewMetrics(mp metric.MeterProvider, tp trace.TracerProvider) (*Metrics, error) {
	meter := mp.Meter("souq/handler")

	ordersPlaced, err := meter.Int64Counter("souq.orders.placed",
		metric.WithDescription("Orders accepted for placement"))
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	webhookEvents, err := meter.Int64Counter("souq.webhook.events",
		metric.WithDescription("Gateway webhook deliveries accepted"))
	if err != nil {
		return nil, errors.Wrap(err, "webhook events counter")
	}

	return &Metrics{
		tracer:        tp.Tracer("souq/handler"),
		ordersPlaced:  ordersPlaced,
		webhookEvents: webhookEvents,
	}, nil
}

// noopMetrics backs handlers constructed without instrumentation, e.g. in
// tests. Noop instruments never fail to build.
func noopMetrics() *Metrics {
	m, _ := NewMetrics(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	return m
}
