package orders

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Events receives lifecycle notifications after the stores are written.
// Implementations must not block the caller.
type Events interface {
	OrderCreated(ctx context.Context, o Order)
	OrderStatusChanged(ctx context.Context, o Order, from Status, actorID string, propagated int)
}

type NopEvents struct{}

func (NopEvents) OrderCreated(context.Context, Order) {}
func (NopEvents) OrderStatusChanged(context.Context, Order, Status, string, int) {}

// Sink is anything that takes a keyed message, e.g. *kafka.Producer.
type Sink interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Publisher wraps lifecycle events in Envelope v1 and hands them to per-topic sinks.
type Publisher struct {
	Created       Sink
	StatusChanged Sink
	Service       string
}

var _ Events = (*Publisher)(nil)

func (p *Publisher) OrderCreated(ctx context.Context, o Order) {
	p.publish(ctx, p.Created, EventOrderCreated, o.ID, CreatedPayload(o))
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, o Order, from Status, actorID string, propagated int) {
	p.publish(ctx, p.StatusChanged, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID:    o.ID,
		From:       from,
		To:         o.Status,
		ActorID:    actorID,
		Propagated: propagated,
	})
}

func (p *Publisher) publish(ctx context.Context, sink Sink, eventType, orderID string, payload any) {
	if sink == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	sink.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType, ev.EventVersion)...)
}
