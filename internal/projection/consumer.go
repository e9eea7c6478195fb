package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type reconciler interface {
	Reconcile(ctx context.Context, orderID string) (ReconcileResult, error)
}

// EventHandler runs a reconcile pass for every order event it sees.
type EventHandler struct {
	Reconciler  reconciler
	Redis       *redis.Client // optional; dedup by event id
	ServiceName string
	Log         *slog.Logger
}

type orderRef struct {
	OrderID string `json:"order_id"`
}

// Handle dipasang sebagai handler consumer.
func (h *EventHandler) Handle(ctx context.Context, m kafkago.Message) error {
	if !handled(kafkax.HeaderValue(m, "x-event-type")) {
		return nil
	}

	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		h.log().Error("drop undecodable event", "offset", m.Offset, "err", err)
		return nil // pesan rusak tidak akan pernah sukses; commit saja
	}
	if env.EventType == "" || !handled(env.EventType) {
		return nil // ignore
	}

	// 2) dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, h.ServiceName, env.EventID)
	if h.Redis != nil {
		fresh, err := redisx.Claim(ctx, h.Redis, dkey, "1", redisx.TTLDedup)
		if err != nil {
			h.log().Warn("dedup unavailable", "event_id", env.EventID, "err", err)
		} else if !fresh {
			return nil
		}
	}

	// 3) decode payload
	ref, err := kafkax.UnwrapPayload[orderRef](env.Payload)
	if err != nil || ref.OrderID == "" {
		h.log().Error("drop event without order id", "event_id", env.EventID, "err", err)
		return nil
	}

	// 4) reconcile
	res, err := h.Reconciler.Reconcile(ctx, ref.OrderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		h.log().Warn("event for unknown order", "order_id", ref.OrderID, "event_id", env.EventID)
		return nil
	}
	if err != nil {
		if h.Redis != nil {
			// consumer akan retry pesan yg sama; jangan sampai ke-dedup
			_ = h.Redis.Del(context.WithoutCancel(ctx), dkey).Err()
		}
		return err
	}
	h.log().Debug("reconciled", "order_id", ref.OrderID, "event", env.EventType, "appended", res.Appended, "updated", res.Updated)
	return nil
}

// handled reports whether eventType triggers a reconcile. Messages without the header pass.
func handled(eventType string) bool {
	switch eventType {
	case "", orders.EventOrderCreated, orders.EventOrderStatusChanged:
		return true
	}
	return false
}

func (h *EventHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
