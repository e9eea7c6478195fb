package httpx

import (
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/lifecycle"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type ProductsHandler struct {
	Coord *lifecycle.Coordinator
	Auth  *Authenticator
	Redis *redis.Client
	Log   *slog.Logger
}

type CreateProductReq struct {
	Title              string              `json:"title"`
	PriceCents         int                 `json:"priceCents"`
	DiscountPriceCents int                 `json:"discountPriceCents"`
	Quantity           int                 `json:"quantity"`
	Availability       orders.Availability `json:"availability"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Require)
		r.Post("/products", h.create)
		r.Get("/products/my-products", h.myProducts)
		r.Patch("/products/{productId}/orders/{orderId}/status", h.updateOrderStatus)
	})
	r.Get("/products/{productId}", h.get)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Coord.Products(r.Context(), r.URL.Query().Get("sort") == "popular")
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Coord.Product(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidJSON", Message: "invalid json"})
		return
	}
	p, err := h.Coord.CreateProduct(r.Context(), orders.Product{
		Title:              req.Title,
		PriceCents:         req.PriceCents,
		DiscountPriceCents: req.DiscountPriceCents,
		Quantity:           req.Quantity,
		Availability:       req.Availability,
	}, actor(r))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Product created", "product": p})
}

// myProducts returns the caller's products, each with its order entries.
func (h *ProductsHandler) myProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Coord.SellerProducts(r.Context(), actor(r).ID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}

func (h *ProductsHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidJSON", Message: "invalid json"})
		return
	}
	ch, err := h.Coord.UpdateProductOrderStatus(r.Context(),
		chi.URLParam(r, "productId"), chi.URLParam(r, "orderId"), req.Status, actor(r))
	oh := OrdersHandler{Redis: h.Redis, Log: h.Log}
	oh.statusChanged(w, r, ch, err)
}

func (h *ProductsHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
