package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/cart"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
	"github.com/Cheertaboi/jewelry-storefront/internal/validation"
)

type checkoutTestContext struct {
	backend *fakeBackend
	ctrl    *Controller
	cart    *cart.Cart
	userID  string
	session *Session
	outcome *Outcome
	err     error
}

func (c *checkoutTestContext) reset() error {
	engine, err := pricing.NewEngine(pricing.DefaultConfig())
	if err != nil {
		return err
	}
	c.backend = newFakeBackend()
	c.ctrl = NewController(c.backend, engine, validation.New(func() time.Time { return testNow }),
		WithConfig(Config{PollInterval: time.Millisecond, PollMaxAttempts: 3, StockCheckWorkers: 2, SubmitGuardTTL: time.Minute}))
	c.cart = cart.New()
	c.userID = ""
	c.session = nil
	c.outcome = nil
	c.err = nil
	return nil
}

func (c *checkoutTestContext) aProductPricedWithInStock(id string, price, stock int) error {
	c.backend.addProduct(id, int64(price), stock)
	return nil
}

func (c *checkoutTestContext) theCartHoldsOf(qty int, id string) error {
	p, ok := c.backend.products[id]
	if !ok {
		return fmt.Errorf("unknown product %s", id)
	}
	_, err := c.cart.Add(p.LineItem(qty), qty)
	return err
}

func (c *checkoutTestContext) theShopperIsLoggedIn() error {
	c.userID = "user-1"
	return nil
}

func (c *checkoutTestContext) theShopperIsAGuest() error {
	c.userID = ""
	return nil
}

func (c *checkoutTestContext) promoIsApplied(code string, pct int) error {
	c.cart.ApplyPromo(models.PromoCode{Code: code, DiscountPercentage: decimal.NewFromInt(int64(pct))})
	return nil
}

func (c *checkoutTestContext) theGatewayNeverConfirms() error {
	c.backend.statuses = []models.PaymentStatus{models.PaymentStatusPending}
	return nil
}

func (c *checkoutTestContext) theShopperStartsCheckout() error {
	c.session, _, c.err = c.ctrl.Start(context.Background(), "sess-1", c.userID, c.cart)
	return nil
}

func (c *checkoutTestContext) requireSession() error {
	if c.session == nil {
		return fmt.Errorf("no checkout session: %v", c.err)
	}
	return nil
}

func (c *checkoutTestContext) entersShippingWithPhone(phone string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	a := validAddress()
	a.Phone = phone
	return c.ctrl.SetShipping(c.session, a)
}

func (c *checkoutTestContext) entersValidShipping() error {
	return c.entersShippingWithPhone(validAddress().Phone)
}

func (c *checkoutTestContext) continuesToTheNextStep() error {
	if err := c.requireSession(); err != nil {
		return err
	}
	c.err = c.ctrl.Next(c.session)
	return nil
}

func (c *checkoutTestContext) paysWithCashOnDelivery() error {
	if err := c.requireSession(); err != nil {
		return err
	}
	return c.ctrl.SetPayment(c.session, models.CashOnDelivery{})
}

func (c *checkoutTestContext) paysByCard(number string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	card := validCard()
	card.Number = number
	c.err = c.ctrl.SetPayment(c.session, card)
	return nil
}

func (c *checkoutTestContext) placesTheOrder() error {
	if err := c.requireSession(); err != nil {
		return err
	}
	c.outcome, c.err = c.ctrl.PlaceOrder(context.Background(), c.session, c.cart)
	return c.err
}

func (c *checkoutTestContext) waitsForPayment() error {
	if c.outcome == nil {
		return errors.New("no order placed")
	}
	c.outcome, c.err = c.ctrl.AwaitPayment(context.Background(), c.outcome.OrderID)
	return c.err
}

func (c *checkoutTestContext) theStepIs(step string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if c.session.Step.String() != step {
		return fmt.Errorf("expected step %s, got %s", step, c.session.Step)
	}
	return nil
}

func (c *checkoutTestContext) fieldReports(field, message string) error {
	e, ok := apperr.As(c.err)
	if !ok {
		return fmt.Errorf("expected a validation error, got %v", c.err)
	}
	if got := e.Fields[field]; got != message {
		return fmt.Errorf("field %s: expected %q, got %q", field, message, got)
	}
	return nil
}

func (c *checkoutTestContext) theTotalsAre(subtotal, discount, shipping, tax, total int) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	got, err := c.ctrl.Totals(c.session, c.cart)
	if err != nil {
		return err
	}
	want := []struct {
		name string
		got  decimal.Decimal
		want int
	}{
		{"subtotal", got.Subtotal, subtotal},
		{"discount", got.Discount, discount},
		{"shipping", got.Shipping, shipping},
		{"tax", got.Tax, tax},
		{"total", got.Total, total},
	}
	for _, w := range want {
		if !w.got.Equal(decimal.NewFromInt(int64(w.want))) {
			return fmt.Errorf("expected %s %d, got %s", w.name, w.want, w.got)
		}
	}
	return nil
}

func (c *checkoutTestContext) theOutcomeIs(status, redirect string) error {
	if c.outcome == nil {
		return fmt.Errorf("no outcome: %v", c.err)
	}
	if string(c.outcome.Status) != status || c.outcome.Redirect != redirect {
		return fmt.Errorf("expected %s %q, got %s %q", status, redirect, c.outcome.Status, c.outcome.Redirect)
	}
	return nil
}

func (c *checkoutTestContext) theCartIsEmpty() error {
	if !c.cart.IsEmpty() {
		return fmt.Errorf("expected an empty cart, got %d lines", len(c.cart.Items))
	}
	return nil
}

func (c *checkoutTestContext) ordersWereCreated(n int) error {
	if got := len(c.backend.orderRequests); got != n {
		return fmt.Errorf("expected %d orders, got %d", n, got)
	}
	return nil
}

func (c *checkoutTestContext) loginIsRequired(path string) error {
	e, ok := apperr.As(c.err)
	if !ok || e.Kind != apperr.KindAuthRequired {
		return fmt.Errorf("expected auth_required, got %v", c.err)
	}
	if e.ReturnPath != path {
		return fmt.Errorf("expected return path %s, got %s", path, e.ReturnPath)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})

	// Given steps
	ctx.Step(`^a product "([^"]*)" priced (\d+) with (\d+) in stock$`, tc.aProductPricedWithInStock)
	ctx.Step(`^the cart holds (\d+) of "([^"]*)"$`, tc.theCartHoldsOf)
	ctx.Step(`^the shopper is logged in$`, tc.theShopperIsLoggedIn)
	ctx.Step(`^the shopper is a guest$`, tc.theShopperIsAGuest)
	ctx.Step(`^promo "([^"]*)" for (\d+) percent is applied$`, tc.promoIsApplied)
	ctx.Step(`^the payment gateway never confirms$`, tc.theGatewayNeverConfirms)

	// When steps
	ctx.Step(`^the shopper starts checkout$`, tc.theShopperStartsCheckout)
	ctx.Step(`^enters a shipping address with phone "([^"]*)"$`, tc.entersShippingWithPhone)
	ctx.Step(`^enters a valid shipping address$`, tc.entersValidShipping)
	ctx.Step(`^continues to the next step$`, tc.continuesToTheNextStep)
	ctx.Step(`^pays with cash on delivery$`, tc.paysWithCashOnDelivery)
	ctx.Step(`^pays by card "([^"]*)"$`, tc.paysByCard)
	ctx.Step(`^places the order$`, tc.placesTheOrder)
	ctx.Step(`^the shopper waits for payment$`, tc.waitsForPayment)

	// Then steps
	ctx.Step(`^the step is "([^"]*)"$`, tc.theStepIs)
	ctx.Step(`^field "([^"]*)" reports "([^"]*)"$`, tc.fieldReports)
	ctx.Step(`^the totals are subtotal (\d+), discount (\d+), shipping (\d+), tax (\d+) and total (\d+)$`, tc.theTotalsAre)
	ctx.Step(`^the outcome is "([^"]*)" with redirect "([^"]*)"$`, tc.theOutcomeIs)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^(\d+) order was created$`, tc.ordersWereCreated)
	ctx.Step(`^login is required with return path "([^"]*)"$`, tc.loginIsRequired)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
