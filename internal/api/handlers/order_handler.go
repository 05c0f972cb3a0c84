package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Cheertaboi/jewelry-storefront/internal/api/middleware"
	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

// Payments is the part of the checkout controller that settles orders
// after the wizard has ended
type Payments interface {
	AwaitPayment(ctx context.Context, orderID string) (*checkout.Outcome, error)
	RetryPayment(ctx context.Context, orderID string) (*checkout.Outcome, error)
}

type OrderHandler struct {
	backend  Backend
	payments Payments
}

func NewOrderHandler(b Backend, p Payments) *OrderHandler {
	return &OrderHandler{backend: b, payments: p}
}

func requireLogin(w http.ResponseWriter, r *http.Request, returnPath string) bool {
	if middleware.VisitorFrom(r.Context()).Authenticated() {
		return true
	}
	fail(w, r, apperr.AuthRequired(returnPath))
	return false
}

// List handles GET /orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireLogin(w, r, "/orders") {
		return
	}
	orders, err := h.backend.ListOrders(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	ok(w, orders)
}

// RetryPayment handles POST /orders/{id}/retry-payment
func (h *OrderHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	if !requireLogin(w, r, "/orders") {
		return
	}
	outcome, err := h.payments.RetryPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, outcome)
}

// AwaitPayment handles POST /orders/{id}/await-payment
func (h *OrderHandler) AwaitPayment(w http.ResponseWriter, r *http.Request) {
	if !requireLogin(w, r, "/orders") {
		return
	}
	outcome, err := h.payments.AwaitPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, outcome)
}
