package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

type fakeBackend struct {
	mu sync.Mutex

	products  map[string]models.Product
	addresses []models.Address
	orders    map[string]*models.Order

	createAddressErr error
	createOrderErr   error
	paymentOrderErr  error
	statuses         []models.PaymentStatus // returned in turn, last one repeats

	createdAddresses []models.Address
	orderRequests    []models.OrderRequest
	paymentOrders    int
	statusPolls      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products: map[string]models.Product{},
		orders:   map[string]*models.Order{},
	}
}

func (f *fakeBackend) addProduct(id string, price int64, stock int) models.Product {
	p := models.Product{ID: id, Title: "Item " + id, Price: decimal.NewFromInt(price), StockQuantity: stock}
	f.products[id] = p
	return p
}

func (f *fakeBackend) addOrder(id string, method models.PaymentMethod) *models.Order {
	o := &models.Order{ID: id, PaymentMethod: method, PaymentStatus: models.PaymentStatusPending}
	f.orders[id] = o
	return o
}

func (f *fakeBackend) GetProduct(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.New(apperr.KindNetwork, "request_rejected", "Product not found")
	}
	return &p, nil
}

func (f *fakeBackend) ListAddresses(context.Context) ([]models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Address(nil), f.addresses...), nil
}

func (f *fakeBackend) CreateAddress(_ context.Context, a models.Address) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createAddressErr != nil {
		return nil, f.createAddressErr
	}
	a.ID = fmt.Sprintf("addr-%d", len(f.createdAddresses)+1)
	f.createdAddresses = append(f.createdAddresses, a)
	f.addresses = append(f.addresses, a)
	return &a, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, req models.OrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderRequests = append(f.orderRequests, req)
	if f.createOrderErr != nil {
		return nil, f.createOrderErr
	}
	o := &models.Order{
		ID:            fmt.Sprintf("ord-%d", len(f.orderRequests)),
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeBackend) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.New(apperr.KindNetwork, "request_rejected", "Order not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeBackend) CreatePaymentOrder(_ context.Context, orderID string) (*models.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentOrders++
	if f.paymentOrderErr != nil {
		return nil, f.paymentOrderErr
	}
	return &models.GatewayOrder{
		ID:       fmt.Sprintf("pay_%d", f.paymentOrders),
		OrderID:  orderID,
		Amount:   185400,
		Currency: "INR",
		Key:      "rzp_test",
	}, nil
}

func (f *fakeBackend) PaymentStatus(context.Context, string) (models.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusPolls++
	if len(f.statuses) == 0 {
		return models.PaymentStatusPending, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

var _ Backend = (*fakeBackend)(nil)
