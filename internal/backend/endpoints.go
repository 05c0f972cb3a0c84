package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

// CurrentUser returns the logged-in user's profile
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, "users.me", http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListAddresses returns the user's saved addresses
func (c *Client) ListAddresses(ctx context.Context) ([]models.Address, error) {
	var out []models.Address
	if err := c.do(ctx, "addresses.list", http.MethodGet, "/users/me/addresses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAddress persists an address and returns it with its new id
func (c *Client) CreateAddress(ctx context.Context, a models.Address) (*models.Address, error) {
	var out models.Address
	if err := c.do(ctx, "addresses.create", http.MethodPost, "/users/me/addresses", a.WithoutID(), &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, apperr.New(apperr.KindNetwork, "bad_response", "The store did not return an address id")
	}
	return &out, nil
}

// GetProduct returns one catalog product with its current price and stock
func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := c.do(ctx, "products.get", http.MethodGet, "/products/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductQuery filters the catalog listing
type ProductQuery struct {
	Category string
	Search   string
	Page     int
	Limit    int
}

func (q ProductQuery) encode() string {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", itoa(q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ListProducts lists the catalog
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, "products.list", http.MethodGet, "/products"+q.encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBanners returns the home page banners
func (c *Client) ListBanners(ctx context.Context) ([]models.Banner, error) {
	var out []models.Banner
	if err := c.do(ctx, "banners.list", http.MethodGet, "/banners", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type promoRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cartTotal"`
}

// ValidatePromo asks the backend whether code applies to a cart of the given
// subtotal. A rejected code comes back as a promoCode field error.
func (c *Client) ValidatePromo(ctx context.Context, code string, subtotal decimal.Decimal) (*models.PromoCode, error) {
	code = models.NormalizePromoCode(code)
	if code == "" {
		return nil, apperr.Validation("Enter a promo code", map[string]string{"promoCode": "Promo code is required"})
	}

	var p models.PromoCode
	err := c.do(ctx, "promo.validate", http.MethodPost, "/cart/promo/validate",
		promoRequest{Code: code, CartTotal: subtotal}, &p)
	if err != nil {
		if se, ok := rejected(err); ok {
			return nil, apperr.Validation("Invalid promo code", map[string]string{"promoCode": se.Message})
		}
		return nil, err
	}
	if p.Code == "" {
		p.Code = code
	}
	p.Code = models.NormalizePromoCode(p.Code)
	if p.DiscountPercentage.IsNegative() || p.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperr.New(apperr.KindNetwork, "bad_response", "The store returned an invalid discount")
	}
	return &p, nil
}

// ListOffers returns the available promo offers, cached for the configured TTL
func (c *Client) ListOffers(ctx context.Context) ([]models.Offer, error) {
	if offers, ok := c.offers.Get(offersCacheKey); ok {
		return offers, nil
	}
	var out []models.Offer
	if err := c.do(ctx, "offers.list", http.MethodGet, "/offers", nil, &out); err != nil {
		return nil, err
	}
	c.offers.Set(offersCacheKey, out)
	return out, nil
}

// CreateOrder places an order from the user's server-side cart
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	var o models.Order
	if err := c.do(ctx, "orders.create", http.MethodPost, "/orders", req, &o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, apperr.New(apperr.KindNetwork, "bad_response", "The store did not return an order id")
	}
	return &o, nil
}

// ListOrders returns the user's order history
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, "orders.list", http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder returns one order
func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := c.do(ctx, "orders.get", http.MethodGet, "/orders/"+url.PathEscape(id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

type paymentOrderRequest struct {
	OrderID string `json:"orderId"`
}

// CreatePaymentOrder opens a payment-gateway order for an existing order
func (c *Client) CreatePaymentOrder(ctx context.Context, orderID string) (*models.GatewayOrder, error) {
	var g models.GatewayOrder
	if err := c.do(ctx, "payments.create", http.MethodPost, "/payments/orders", paymentOrderRequest{OrderID: orderID}, &g); err != nil {
		return nil, err
	}
	if g.ID == "" || g.Amount <= 0 || g.Currency == "" {
		return nil, apperr.New(apperr.KindPayment, "bad_gateway_order", "The payment gateway returned an incomplete order")
	}
	if g.OrderID == "" {
		g.OrderID = orderID
	}
	return &g, nil
}

type paymentStatusResponse struct {
	Status models.PaymentStatus `json:"status"`
}

// PaymentStatus reports the gateway settlement state of an order
func (c *Client) PaymentStatus(ctx context.Context, orderID string) (models.PaymentStatus, error) {
	var r paymentStatusResponse
	path := "/payments/orders/" + url.PathEscape(orderID) + "/status"
	if err := c.do(ctx, "payments.status", http.MethodGet, path, nil, &r); err != nil {
		return "", err
	}
	return r.Status, nil
}
