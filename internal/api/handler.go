// Package api exposes the checkout and order operations over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/phamdo/boutique-orders/internal/domain/order"
)

// OrderService is the surface of the order domain consumed by the HTTP
// layer. Satisfied by *order.Service.
type OrderService interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error)
	SetStatus(ctx context.Context, orderID string, next order.Status) (*order.Order, error)
	SetPaymentStatus(ctx context.Context, orderID string, ps order.PaymentStatus, bank *order.BankTransferInfo) (*order.Order, error)
	GetOrder(ctx context.Context, orderID string) (*order.Detail, error)
	ListUserOrders(ctx context.Context, userID string, f order.Filter, p order.Page) (*order.OrderList, error)
	ListOrders(ctx context.Context, f order.Filter, p order.Page) (*order.OrderList, error)
	UserAddresses(ctx context.Context, userID string) ([]order.Address, error)
}

// Handler translates HTTP requests into order service calls and maps
// domain errors back to status codes.
type Handler struct {
	orders OrderService
}

// NewHandler constructs a Handler around the given service.
func NewHandler(orders OrderService) *Handler {
	return &Handler{orders: orders}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.checkout)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.setStatus)
	mux.HandleFunc("PATCH /api/orders/{id}/payment", h.setPaymentStatus)
	mux.HandleFunc("GET /api/users/{id}/orders", h.listUserOrders)
	mux.HandleFunc("GET /api/users/{id}/addresses", h.userAddresses)
}
