package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/jewelry-storefront/internal/api/middleware"
	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/backend"
	"github.com/Cheertaboi/jewelry-storefront/internal/cart"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
	"github.com/Cheertaboi/jewelry-storefront/internal/session"
)

// Backend is the part of the storefront API the HTTP handlers call directly
type Backend interface {
	CurrentUser(ctx context.Context) (*models.User, error)
	ListAddresses(ctx context.Context) ([]models.Address, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, q backend.ProductQuery) ([]models.Product, error)
	ListBanners(ctx context.Context) ([]models.Banner, error)
	ValidatePromo(ctx context.Context, code string, subtotal decimal.Decimal) (*models.PromoCode, error)
	ListOffers(ctx context.Context) ([]models.Offer, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
}

type CartHandler struct {
	store   session.Store
	backend Backend
	engine  *pricing.Engine
}

func NewCartHandler(store session.Store, b Backend, e *pricing.Engine) *CartHandler {
	return &CartHandler{store: store, backend: b, engine: e}
}

// --- DTOs ---

type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

type PromoRequest struct {
	Code string `json:"code"`
}

type CartView struct {
	Items           []models.CartLineItem    `json:"items"`
	Promo           *models.PromoCode        `json:"promo,omitempty"`
	Totals          pricing.Totals           `json:"totals"`
	CanCheckout     bool                     `json:"canCheckout"`
	ShippingOptions []pricing.ShippingOption `json:"shippingOptions"`
	Adjustments     []cart.Adjustment        `json:"adjustments,omitempty"`
	Warnings        []string                 `json:"warnings,omitempty"`
}

// view renders st into notes, which may already carry adjustments and
// warnings from the mutation that produced st
func (h *CartHandler) view(st *session.State, notes CartView) (CartView, error) {
	option := pricing.OptionID("")
	if st.Checkout != nil {
		option = st.Checkout.ShippingMethod
	}
	totals, err := st.Cart.Totals(h.engine, option)
	if err != nil {
		return CartView{}, err
	}
	v := CartView{
		Items:           st.Cart.Items,
		Promo:           st.Cart.Promo,
		Totals:          totals,
		CanCheckout:     !st.Cart.IsEmpty(),
		ShippingOptions: h.engine.Options(),
		Adjustments:     notes.Adjustments,
	}
	for _, a := range notes.Adjustments {
		v.Warnings = append(v.Warnings, a.Message())
	}
	v.Warnings = append(v.Warnings, notes.Warnings...)
	return v, nil
}

func (h *CartHandler) load(r *http.Request) (*session.State, error) {
	key := middleware.VisitorFrom(r.Context()).SessionKey()
	st, err := h.store.Load(r.Context(), key)
	if errors.Is(err, session.ErrNotFound) {
		return &session.State{ID: key, Cart: *cart.New()}, nil
	}
	return st, err
}

// mutate applies fn to the visitor's cart under the session lock and
// renders the result. fn may record adjustments and warnings in notes.
func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(c *cart.Cart, notes *CartView) error) {
	v := middleware.VisitorFrom(r.Context())
	var notes CartView
	st, err := h.store.Update(r.Context(), v.SessionKey(), func(st *session.State) error {
		st.UserID, st.GuestID = v.UserID, v.GuestID
		notes = CartView{}
		return fn(&st.Cart, &notes)
	})
	if err != nil {
		fail(w, r, cartError(err))
		return
	}

	view, err := h.view(st, notes)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, view)
}

// adjusted adapts a cart operation that may clamp a quantity
func adjusted(op func(c *cart.Cart) (*cart.Adjustment, error)) func(*cart.Cart, *CartView) error {
	return func(c *cart.Cart, notes *CartView) error {
		adj, err := op(c)
		if adj != nil {
			notes.Adjustments = append(notes.Adjustments, *adj)
		}
		return err
	}
}

func cartError(err error) error {
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		return apperr.Wrap(apperr.KindValidation, "item_not_in_cart", "That item is no longer in your cart", err)
	case errors.Is(err, cart.ErrOutOfStock):
		return apperr.Wrap(apperr.KindStockConflict, "out_of_stock", "This item is out of stock", err)
	default:
		return err
	}
}

// --- Handlers ---

// GetCart handles GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	st, err := h.load(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	view, err := h.view(st, CartView{})
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, view)
}

// AddItem handles POST /cart/items. Price and stock always come from the
// catalog, never from the request.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		fail(w, r, apperr.Validation("Select a product", map[string]string{"productId": "Product is required"}))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.backend.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.mutate(w, r, adjusted(func(c *cart.Cart) (*cart.Adjustment, error) {
		return c.Add(p.LineItem(req.Quantity), req.Quantity)
	}))
}

// SetQuantity handles PATCH /cart/items/{id}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	h.mutate(w, r, adjusted(func(c *cart.Cart) (*cart.Adjustment, error) {
		return c.SetQuantity(id, req.Quantity)
	}))
}

// Increment handles POST /cart/items/{id}/increment
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, adjusted(func(c *cart.Cart) (*cart.Adjustment, error) {
		return c.Increment(id)
	}))
}

// Decrement handles POST /cart/items/{id}/decrement
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, adjusted(func(c *cart.Cart) (*cart.Adjustment, error) {
		return c.Decrement(id)
	}))
}

// RemoveItem handles DELETE /cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, func(c *cart.Cart, _ *CartView) error {
		return c.Remove(id)
	})
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *cart.Cart, _ *CartView) error {
		c.Clear()
		return nil
	})
}

// ApplyPromo handles POST /cart/promo. A new code replaces the applied one.
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req PromoRequest
	if !decode(w, r, &req) {
		return
	}

	st, err := h.load(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if st.Cart.IsEmpty() {
		fail(w, r, apperr.Validation("Add items before applying a promo code",
			map[string]string{"promoCode": "Your cart is empty"}))
		return
	}

	promo, err := h.backend.ValidatePromo(r.Context(), req.Code, pricing.Subtotal(st.Cart.Lines()))
	if err != nil {
		fail(w, r, err)
		return
	}

	h.mutate(w, r, func(c *cart.Cart, notes *CartView) error {
		if prev := c.ApplyPromo(*promo); prev != nil && prev.Code != promo.Code {
			notes.Warnings = append(notes.Warnings, "Promo code "+prev.Code+" was replaced by "+promo.Code)
		}
		return nil
	})
}

// RemovePromo handles DELETE /cart/promo
func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *cart.Cart, _ *CartView) error {
		c.RemovePromo()
		return nil
	})
}

// Offers handles GET /cart/offers
func (h *CartHandler) Offers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.backend.ListOffers(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if offers == nil {
		offers = []models.Offer{}
	}
	ok(w, offers)
}
