package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is the order-creation payload sent to the backend
type OrderRequest struct {
	ShippingAddressID string        `json:"shippingAddressId"`
	BillingAddressID  string        `json:"billingAddressId"`
	ShippingMethod    string        `json:"shippingMethod"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
}

type Order struct {
	ID            string          `json:"id"`
	Number        string          `json:"orderNumber,omitempty"`
	Status        string          `json:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	IsPaid        bool            `json:"isPaid"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Product struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	Image         string          `json:"image,omitempty"`
	Category      string          `json:"category,omitempty"`
}

// LineItem converts a catalog product into a cart line of the given quantity
func (p Product) LineItem(quantity int) CartLineItem {
	return CartLineItem{
		ID:            p.ID,
		Title:         p.Title,
		UnitPrice:     p.Price,
		Quantity:      quantity,
		StockQuantity: p.StockQuantity,
		Image:         p.Image,
	}
}

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Banner is a promotional slide on the storefront home page
type Banner struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    string `json:"image"`
	Link     string `json:"link,omitempty"`
}
