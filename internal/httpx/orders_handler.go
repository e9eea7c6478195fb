package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/lifecycle"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

const idempotencyHeader = "Idempotency-Key"

type OrdersHandler struct {
	Coord *lifecycle.Coordinator
	Auth  *Authenticator
	Redis *redis.Client // optional: idempotency + status cache
	Log   *slog.Logger
}

type CreateOrderReq struct {
	Address      string             `json:"address"`
	Items        []orders.LineInput `json:"items"`
	CartItems    []orders.LineInput `json:"cartItems"`
	Phone        string             `json:"phone"`
	Note         string             `json:"note"`
	DeliveryType string             `json:"deliveryType"`
}

func (req CreateOrderReq) lines() []orders.LineInput {
	if len(req.Items) > 0 {
		return req.Items
	}
	return req.CartItems
}

type OrderResp struct {
	Message string       `json:"message"`
	Order   orders.Order `json:"order"`
}

type StatusReq struct {
	Status string `json:"status"`
}

type StatusResp struct {
	Message    string        `json:"message"`
	Order      orders.Order  `json:"order"`
	Previous   orders.Status `json:"previousStatus"`
	Propagated int           `json:"propagated"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Require)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/my-orders", h.myOrders)
		r.Get("/orders/seller", h.sellerOrders)
		r.Get("/orders", h.allOrders)
		r.Get("/orders/{orderId}", h.getOrder)
		r.Patch("/orders/{orderId}/status", h.updateStatus)
		r.Post("/admin/orders/{orderId}/reconcile", h.reconcile)
	})
	// polling endpoint: cache first, then store
	r.Get("/orders/{orderId}/status", h.getStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidJSON", Message: "invalid json"})
		return
	}
	who := actor(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Idempotency-Key: first request claims the key, replays get the stored order back.
	idemKey := ""
	if k := r.Header.Get(idempotencyHeader); k != "" && h.Redis != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, who.ID, k)
		claimed, err := redisx.Claim(ctx, h.Redis, idemKey, redisx.IdemInFlight, redisx.TTLInFlight)
		if err != nil {
			h.log().Warn("idempotency unavailable", "err", err)
			idemKey = ""
		} else if !claimed {
			h.replay(ctx, w, idemKey, who.ID)
			return
		}
	}

	o, err := h.Coord.CreateOrder(ctx, who.ID, req.Address, req.lines(), orders.BuyerMeta{
		Name:         who.Name,
		Email:        who.Email,
		Phone:        req.Phone,
		Note:         req.Note,
		DeliveryType: req.DeliveryType,
	})
	if err != nil {
		if idemKey != "" {
			_ = h.Redis.Del(ctx, idemKey).Err()
		}
		writeError(w, h.log(), err)
		return
	}

	if h.Redis != nil {
		if idemKey != "" {
			_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
		}
		_ = redisx.CacheStatus(ctx, h.Redis, o.ID, string(o.Status), o.UpdatedAt)
	}
	writeJSON(w, http.StatusCreated, OrderResp{Message: "Order placed", Order: o})
}

func (h *OrdersHandler) replay(ctx context.Context, w http.ResponseWriter, idemKey, buyerID string) {
	orderID, ok, err := redisx.Lookup(ctx, h.Redis, idemKey)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if !ok || orderID == redisx.IdemInFlight {
		writeJSON(w, http.StatusConflict, errorBody{Error: "RequestInFlight", Message: "an order with this idempotency key is still being placed"})
		return
	}
	o, err := h.Coord.OrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if o.BuyerID != buyerID {
		writeError(w, h.log(), orders.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, OrderResp{Message: "Order already placed", Order: o})
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Coord.OrdersForBuyer(r.Context(), actor(r).ID)
	h.list(w, out, err)
}

func (h *OrdersHandler) sellerOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Coord.OrdersForSeller(r.Context(), actor(r).ID)
	h.list(w, out, err)
}

func (h *OrdersHandler) allOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Coord.AllOrders(r.Context(), actor(r))
	h.list(w, out, err)
}

func (h *OrdersHandler) list(w http.ResponseWriter, out []orders.Order, err error) {
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Coord.Order(r.Context(), chi.URLParam(r, "orderId"), actor(r))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Redis != nil {
		if cs, ok, err := redisx.GetCachedStatus(ctx, h.Redis, orderID); err == nil && ok {
			writeJSON(w, http.StatusOK, cs)
			return
		}
	}

	// 2) fallback store
	o, err := h.Coord.OrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if h.Redis != nil {
		_ = redisx.CacheStatus(ctx, h.Redis, o.ID, string(o.Status), o.UpdatedAt)
	}
	writeJSON(w, http.StatusOK, redisx.CachedStatus{Status: string(o.Status), UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidJSON", Message: "invalid json"})
		return
	}
	ch, err := h.Coord.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderId"), req.Status, actor(r))
	h.statusChanged(w, r, ch, err)
}

func (h *OrdersHandler) statusChanged(w http.ResponseWriter, r *http.Request, ch lifecycle.StatusChange, err error) {
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if h.Redis != nil {
		_ = redisx.CacheStatus(r.Context(), h.Redis, ch.Order.ID, string(ch.Order.Status), ch.Order.UpdatedAt)
	}
	writeJSON(w, http.StatusOK, StatusResp{
		Message:    "Order status updated",
		Order:      ch.Order,
		Previous:   ch.Previous,
		Propagated: ch.Propagated,
	})
}

func (h *OrdersHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	if !actor(r).IsAdmin() {
		writeError(w, h.log(), fmt.Errorf("%w: admin only", orders.ErrForbidden))
		return
	}
	res, err := h.Coord.Reconcile(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
