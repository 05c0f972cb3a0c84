package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Cheertaboi/jewelry-storefront/internal/api/middleware"
	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/cart"
	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
	"github.com/Cheertaboi/jewelry-storefront/internal/session"
)

var errNoCheckout = errors.New("checkout not started")

type CheckoutHandler struct {
	store session.Store
	ctrl  *checkout.Controller
}

func NewCheckoutHandler(store session.Store, ctrl *checkout.Controller) *CheckoutHandler {
	return &CheckoutHandler{store: store, ctrl: ctrl}
}

// --- DTOs ---

type BillingRequest struct {
	SameAsShipping bool            `json:"sameAsShipping"`
	Address        *models.Address `json:"address,omitempty"`
}

type ShippingMethodRequest struct {
	ShippingMethod pricing.OptionID `json:"shippingMethod"`
}

type CheckoutView struct {
	Session     *checkout.Session        `json:"session"`
	Billing     models.Address           `json:"billing"`
	Items       []models.CartLineItem    `json:"items"`
	Totals      pricing.Totals           `json:"totals"`
	Options     []pricing.ShippingOption `json:"shippingOptions"`
	Adjustments []cart.Adjustment        `json:"adjustments,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

func (h *CheckoutHandler) view(st *session.State, adjustments []cart.Adjustment) (CheckoutView, error) {
	totals, err := h.ctrl.Totals(st.Checkout, &st.Cart)
	if err != nil {
		return CheckoutView{}, err
	}
	v := CheckoutView{
		Session:     st.Checkout,
		Billing:     st.Checkout.BillingAddress(),
		Items:       st.Cart.Items,
		Totals:      totals,
		Options:     h.ctrl.ShippingOptions(),
		Adjustments: adjustments,
	}
	for _, a := range adjustments {
		v.Warnings = append(v.Warnings, a.Message())
	}
	return v, nil
}

func notStarted() error {
	return apperr.Wrap(apperr.KindValidation, "checkout_not_started", "Start checkout from your cart", errNoCheckout)
}

// step runs fn against the visitor's checkout session under the session
// lock and renders the session afterwards
func (h *CheckoutHandler) step(w http.ResponseWriter, r *http.Request, fn func(st *session.State) error) {
	v := middleware.VisitorFrom(r.Context())
	if !v.Authenticated() {
		fail(w, r, apperr.AuthRequired("/checkout"))
		return
	}
	st, err := h.store.Update(r.Context(), v.SessionKey(), func(st *session.State) error {
		if st.Checkout == nil {
			return notStarted()
		}
		return fn(st)
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	view, err := h.view(st, nil)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, view)
}

// --- Handlers ---

// Start handles POST /checkout. Any previous wizard is discarded.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r.Context())
	var adjustments []cart.Adjustment
	st, err := h.store.Update(r.Context(), v.SessionKey(), func(st *session.State) error {
		st.UserID, st.GuestID = v.UserID, v.GuestID
		s, adj, err := h.ctrl.Start(r.Context(), v.SessionKey(), v.UserID, &st.Cart)
		adjustments = adj
		if err != nil {
			return err
		}
		st.Checkout = s
		return nil
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	view, err := h.view(st, adjustments)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, view)
}

// Get handles GET /checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r.Context())
	st, err := h.store.Load(r.Context(), v.SessionKey())
	switch {
	case errors.Is(err, session.ErrNotFound):
		fail(w, r, notStarted())
		return
	case err != nil:
		fail(w, r, err)
		return
	case st.Checkout == nil:
		fail(w, r, notStarted())
		return
	}
	view, err := h.view(st, nil)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, view)
}

// Abandon handles DELETE /checkout
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r.Context())
	_, err := h.store.Update(r.Context(), v.SessionKey(), func(st *session.State) error {
		st.Checkout = nil
		return nil
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetShipping handles PUT /checkout/shipping
func (h *CheckoutHandler) SetShipping(w http.ResponseWriter, r *http.Request) {
	var a models.Address
	if !decode(w, r, &a) {
		return
	}
	h.step(w, r, func(st *session.State) error {
		return h.ctrl.SetShipping(st.Checkout, a)
	})
}

// SetBilling handles PUT /checkout/billing
func (h *CheckoutHandler) SetBilling(w http.ResponseWriter, r *http.Request) {
	var req BillingRequest
	if !decode(w, r, &req) {
		return
	}
	h.step(w, r, func(st *session.State) error {
		if err := h.ctrl.SetSameAsShipping(st.Checkout, req.SameAsShipping); err != nil {
			return err
		}
		if req.Address != nil {
			return h.ctrl.SetBilling(st.Checkout, *req.Address)
		}
		return nil
	})
}

// SetPayment handles PUT /checkout/payment
func (h *CheckoutHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var p models.PaymentChoice
	if !decode(w, r, &p) {
		return
	}
	h.step(w, r, func(st *session.State) error {
		return h.ctrl.SetPayment(st.Checkout, p.PaymentSelection)
	})
}

// SetShippingMethod handles PUT /checkout/shipping-method
func (h *CheckoutHandler) SetShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req ShippingMethodRequest
	if !decode(w, r, &req) {
		return
	}
	h.step(w, r, func(st *session.State) error {
		return h.ctrl.SetShippingMethod(st.Checkout, req.ShippingMethod)
	})
}

// UseSavedAddress handles POST /checkout/saved-address/{id}?role=billing
func (h *CheckoutHandler) UseSavedAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	role := checkout.RoleShipping
	if r.URL.Query().Get("role") == string(checkout.RoleBilling) {
		role = checkout.RoleBilling
	}
	h.step(w, r, func(st *session.State) error {
		return h.ctrl.UseSavedAddress(r.Context(), st.Checkout, id, role)
	})
}

// Next handles POST /checkout/next
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(st *session.State) error {
		return h.ctrl.Next(st.Checkout)
	})
}

// Back handles POST /checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(st *session.State) error {
		h.ctrl.Back(st.Checkout)
		return nil
	})
}

// Place handles POST /checkout/place
func (h *CheckoutHandler) Place(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r.Context())
	if !v.Authenticated() {
		fail(w, r, apperr.AuthRequired("/checkout"))
		return
	}
	var outcome *checkout.Outcome
	_, err := h.store.Update(r.Context(), v.SessionKey(), func(st *session.State) error {
		if st.Checkout == nil {
			return notStarted()
		}
		var err error
		outcome, err = h.ctrl.PlaceOrder(r.Context(), st.Checkout, &st.Cart)
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, outcome)
}

// AwaitPayment handles POST /checkout/payment/await. Polling runs outside
// the session lock; the result is recorded afterwards. Outcomes that are
// not awaiting payment are returned as recorded.
func (h *CheckoutHandler) AwaitPayment(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r.Context())
	st, err := h.store.Load(r.Context(), v.SessionKey())
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		fail(w, r, err)
		return
	}
	if st == nil || st.Checkout == nil || st.Checkout.Order == nil {
		fail(w, r, apperr.Wrap(apperr.KindValidation, "no_pending_payment", "There is no payment to confirm", errNoCheckout))
		return
	}
	if st.Checkout.Order.Status != checkout.OutcomeAwaitingPayment {
		ok(w, st.Checkout.Order)
		return
	}
	orderID := st.Checkout.Order.OrderID

	outcome, err := h.ctrl.AwaitPayment(r.Context(), orderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	outcome.PaymentMethod = st.Checkout.Order.PaymentMethod

	_, err = h.store.Update(r.Context(), v.SessionKey(), func(st *session.State) error {
		if st.Checkout != nil && st.Checkout.Order != nil && st.Checkout.Order.OrderID == orderID {
			st.Checkout.Order = outcome
		}
		return nil
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, outcome)
}
