package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

var errorTable = []struct {
	err  error
	code int
	name string
}{
	{orders.ErrEmptyOrder, http.StatusBadRequest, "EmptyOrder"},
	{orders.ErrMissingAddress, http.StatusBadRequest, "MissingAddress"},
	{orders.ErrInvalidQuantity, http.StatusBadRequest, "InvalidQuantity"},
	{orders.ErrInvalidStatus, http.StatusBadRequest, "InvalidStatus"},
	{orders.ErrInsufficientStock, http.StatusBadRequest, "InsufficientStock"},
	{inventory.ErrInvalidProduct, http.StatusBadRequest, "InvalidProduct"},
	{orders.ErrProductNotFound, http.StatusNotFound, "ProductNotFound"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "OrderNotFound"},
	{orders.ErrProjectionEntryNotFound, http.StatusNotFound, "ProjectionEntryNotFound"},
	{orders.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{orders.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
}

// writeError maps domain errors to status codes; anything unknown is a 500.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			body := errorBody{Error: e.name, Message: err.Error()}
			var stock *orders.InsufficientStockError
			if errors.As(err, &stock) {
				body.Details = stock
			}
			writeJSON(w, e.code, body)
			return
		}
	}
	log.Error("request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal", Message: "internal error"})
}
