// Package handler is the thin HTTP surface over the core services. It owns
// request decoding and the mapping of domain errors to status codes and
// stable reason codes; all business logic stays in the domain packages.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/retailhub/order-service/internal/domain/cart"
	"github.com/retailhub/order-service/internal/domain/order"
)

// Handler exposes the order and cart services over HTTP.
type Handler struct {
	orders  *order.Service
	queries *order.QueryEngine
	carts   *cart.Service
}

// New constructs a Handler with the required services.
func New(orders *order.Service, queries *order.QueryEngine, carts *cart.Service) *Handler {
	return &Handler{
		orders:  orders,
		queries: queries,
		carts:   carts,
	}
}

// Register installs all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.queryOrders)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.updateOrderStatus)
	mux.HandleFunc("PUT /api/orders/{id}/review", h.reviewOrder)

	mux.HandleFunc("POST /api/cart", h.addCartLine)
	mux.HandleFunc("GET /api/cart/{retailerID}", h.cartByRetailer)
	mux.HandleFunc("DELETE /api/cart/lines/{id}", h.removeCartLine)
}

// errorResponse is the uniform error body: a human-readable message plus a
// stable machine-checkable reason.
type errorResponse struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and reason and writes the uniform
// error body. Infrastructure failures are also logged.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, reason := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{
		Code:    status,
		Reason:  reason,
		Message: err.Error(),
	})
}

func classify(err error) (int, string) {
	// Cart errors have no reason-code table of their own; map them here.
	switch {
	case errors.Is(err, cart.ErrNotFound):
		return http.StatusNotFound, "cart_line_not_found"
	case errors.Is(err, cart.ErrRetailerNotFound):
		return http.StatusBadRequest, "retailer_not_found"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, string(order.ReasonValidation)
	}

	reason := order.ReasonOf(err)
	switch reason {
	case order.ReasonValidation:
		return http.StatusBadRequest, string(reason)
	case order.ReasonRetailerNotFound:
		return http.StatusBadRequest, string(reason)
	case order.ReasonOrderNotFound, order.ReasonOrderItemNotFound, order.ReasonProductNotFound:
		return http.StatusNotFound, string(reason)
	case order.ReasonNoOrderLines, order.ReasonInsufficientStock, order.ReasonStateTerminal:
		return http.StatusConflict, string(reason)
	case order.ReasonConcurrencyConflict:
		return http.StatusConflict, string(reason)
	case order.ReasonInventoryUpdateFailed:
		return http.StatusBadGateway, string(reason)
	}
	return http.StatusInternalServerError, "internal"
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(order.ErrValidation, err.Error())
	}
	return nil
}
