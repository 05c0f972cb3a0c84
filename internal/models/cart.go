package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type CartLineItem struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	StockQuantity int             `json:"stockQuantity"`
	Image         string          `json:"image,omitempty"`
}

// LineTotal is unit price times quantity
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PromoCode is a percentage discount validated by the backend.
// Codes compare case-insensitively; Normalize before storing.
type PromoCode struct {
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Description        string          `json:"description,omitempty"`
}

// NormalizePromoCode trims and upper-cases a user-entered code
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Offer is an entry of the backend's "available offers" list
type Offer struct {
	Code               string          `json:"code"`
	Title              string          `json:"title"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	MinOrderValue      decimal.Decimal `json:"minOrderValue"`
}
