// Package cart holds the visitor's cart: line items with stock-bounded
// quantities and at most one applied promo code.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/jewelry-storefront/internal/models"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
)

// MaxQuantityPerItem caps every line regardless of stock
const MaxQuantityPerItem = 10

var (
	ErrItemNotFound = errors.New("item not in cart")
	ErrOutOfStock   = errors.New("item is out of stock")
)

// Adjustment reasons
const (
	ReasonExceedsStock = "exceeds_stock"
	ReasonExceedsLimit = "exceeds_limit"
	ReasonBelowMinimum = "below_minimum"
	ReasonOutOfStock   = "out_of_stock"
)

// Adjustment reports that a requested quantity was clamped
type Adjustment struct {
	ItemID    string `json:"itemId"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
	Reason    string `json:"reason"`
}

// Message renders the adjustment as a user-facing warning
func (a Adjustment) Message() string {
	switch a.Reason {
	case ReasonExceedsStock:
		return fmt.Sprintf("Only %d left in stock; quantity set to %d", a.Applied, a.Applied)
	case ReasonExceedsLimit:
		return fmt.Sprintf("You can order at most %d of this item", MaxQuantityPerItem)
	case ReasonBelowMinimum:
		return "Quantity cannot be less than 1"
	case ReasonOutOfStock:
		return "This item is no longer in stock and was removed from your cart"
	default:
		return "Quantity adjusted"
	}
}

// MaxQuantity is min(MaxQuantityPerItem, stock)
func MaxQuantity(stock int) int {
	if stock < MaxQuantityPerItem {
		return stock
	}
	return MaxQuantityPerItem
}

// ClampQuantity bounds requested into [1, min(10, stock)]. stock must be
// positive.
func ClampQuantity(requested, stock int) (int, string) {
	ceiling := MaxQuantity(stock)
	switch {
	case requested < 1:
		return 1, ReasonBelowMinimum
	case requested > ceiling:
		if ceiling == stock && stock < MaxQuantityPerItem {
			return ceiling, ReasonExceedsStock
		}
		return ceiling, ReasonExceedsLimit
	default:
		return requested, ""
	}
}

// Cart is owned by a single visitor session; it is not safe for concurrent use.
type Cart struct {
	Items []models.CartLineItem `json:"items"`
	Promo *models.PromoCode     `json:"promo,omitempty"`
}

func New() *Cart {
	return &Cart{Items: []models.CartLineItem{}}
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line for id
func (c *Cart) Find(id string) (models.CartLineItem, bool) {
	if i := c.index(id); i >= 0 {
		return c.Items[i], true
	}
	return models.CartLineItem{}, false
}

func (c *Cart) index(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Add puts qty of item into the cart, merging with an existing line and
// refreshing its price and stock from item.
func (c *Cart) Add(item models.CartLineItem, qty int) (*Adjustment, error) {
	if item.StockQuantity < 1 {
		return nil, fmt.Errorf("%w: %s", ErrOutOfStock, item.ID)
	}
	requested := qty
	if i := c.index(item.ID); i >= 0 {
		requested += c.Items[i].Quantity
		c.Items[i].Title = item.Title
		c.Items[i].UnitPrice = item.UnitPrice
		c.Items[i].StockQuantity = item.StockQuantity
		c.Items[i].Image = item.Image
		return c.setQuantityAt(i, requested), nil
	}
	item.Quantity = 0
	c.Items = append(c.Items, item)
	return c.setQuantityAt(len(c.Items)-1, requested), nil
}

// SetQuantity sets the quantity of a line, clamped to its bounds
func (c *Cart) SetQuantity(id string, qty int) (*Adjustment, error) {
	i := c.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return c.setQuantityAt(i, qty), nil
}

// Increment adds one to a line's quantity
func (c *Cart) Increment(id string) (*Adjustment, error) {
	i := c.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return c.setQuantityAt(i, c.Items[i].Quantity+1), nil
}

// Decrement removes one from a line's quantity; it never goes below 1
func (c *Cart) Decrement(id string) (*Adjustment, error) {
	i := c.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return c.setQuantityAt(i, c.Items[i].Quantity-1), nil
}

func (c *Cart) setQuantityAt(i, requested int) *Adjustment {
	applied, reason := ClampQuantity(requested, c.Items[i].StockQuantity)
	c.Items[i].Quantity = applied
	if reason == "" {
		return nil
	}
	return &Adjustment{ItemID: c.Items[i].ID, Requested: requested, Applied: applied, Reason: reason}
}

// UpdateStock refreshes a line's stock and re-clamps its quantity. A line
// whose stock dropped to zero is removed and reported.
func (c *Cart) UpdateStock(id string, stock int) (*Adjustment, error) {
	i := c.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if stock < 1 {
		requested := c.Items[i].Quantity
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return &Adjustment{ItemID: id, Requested: requested, Applied: 0, Reason: ReasonOutOfStock}, nil
	}
	c.Items[i].StockQuantity = stock
	return c.setQuantityAt(i, c.Items[i].Quantity), nil
}

// Remove drops a line
func (c *Cart) Remove(id string) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

// ApplyPromo replaces any previously applied promo and returns it
func (c *Cart) ApplyPromo(p models.PromoCode) *models.PromoCode {
	previous := c.Promo
	p.Code = models.NormalizePromoCode(p.Code)
	c.Promo = &p
	return previous
}

// RemovePromo detaches the applied promo, if any
func (c *Cart) RemovePromo() {
	c.Promo = nil
}

// HasPromo reports whether code (case-insensitive) is the applied promo
func (c *Cart) HasPromo(code string) bool {
	return c.Promo != nil && c.Promo.Code == models.NormalizePromoCode(code)
}

// Clear empties the cart and drops the promo
func (c *Cart) Clear() {
	c.Items = []models.CartLineItem{}
	c.Promo = nil
}

// Lines returns the pricing view of the cart
func (c *Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return lines
}

// DiscountPercent is the applied promo's percentage, or zero
func (c *Cart) DiscountPercent() decimal.Decimal {
	if c.Promo == nil {
		return decimal.Zero
	}
	return c.Promo.DiscountPercentage
}

// Totals prices the cart with the given engine and shipping option
func (c *Cart) Totals(e *pricing.Engine, option pricing.OptionID) (pricing.Totals, error) {
	return e.Compute(c.Lines(), c.DiscountPercent(), option)
}
