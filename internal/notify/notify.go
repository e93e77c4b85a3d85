// Package notify publishes order lifecycle events to RabbitMQ. Publishing is
// decoupled from request handling through a buffered in-process queue and a
// background worker pool: a slow or down broker can never block an order.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"souq/internal/domain/order"
)

// DefaultQueue is the durable queue order events are published to.
const DefaultQueue = "order-events"

// Publisher writes events to a RabbitMQ queue.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewPublisher connects to RabbitMQ and declares the durable event queue.
func NewPublisher(url, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare queue %s", queue)
	}

	return &Publisher{conn: conn, channel: ch, queue: queue}, nil
}

// Publish writes one event as a persistent JSON message.
func (p *Publisher) Publish(_ context.Context, ev order.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	err = p.channel.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Type:         string(ev.Type),
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, "publish event")
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return errors.Wrap(err, "close channel")
	}
	return p.conn.Close()
}

// Sink is the broker-facing side of the worker; split out for tests.
type Sink interface {
	Publish(ctx context.Context, ev order.Event) error
}

var _ order.EventSink = (*Worker)(nil)

// Worker is an asynchronous order.EventSink: Publish enqueues without
// blocking and a bounded pool of goroutines drains the queue to the broker.
// Events are best-effort notifications; when the buffer is full the event is
// dropped and logged rather than stalling order processing.
type Worker struct {
	sink    Sink
	events  chan order.Event
	workers int
}

// NewWorker creates a Worker draining into sink. buffer bounds the pending
// event queue; workers bounds publish concurrency.
func NewWorker(sink Sink, buffer, workers int) *Worker {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Worker{
		sink:    sink,
		events:  make(chan order.Event, buffer),
		workers: workers,
	}
}

// Publish enqueues the event for background delivery. Never blocks.
func (w *Worker) Publish(ctx context.Context, ev order.Event) {
	select {
	case w.events <- ev:
	default:
		zctx.From(ctx).Warn("notification buffer full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("order_id", ev.OrderID),
		)
	}
}

// Run drains the queue until ctx is cancelled, then finishes in-flight
// deliveries. Delivery failures are logged, not retried; consumers reconcile
// from the store.
func (w *Worker) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-w.events:
					w.deliver(ctx, ev)
				}
			}
		})
	}
	return g.Wait()
}

func (w *Worker) deliver(ctx context.Context, ev order.Event) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := w.sink.Publish(ctx, ev); err != nil {
		zctx.From(ctx).Error("publish order event",
			zap.String("type", string(ev.Type)),
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
	}
}
