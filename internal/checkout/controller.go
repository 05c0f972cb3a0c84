// Package checkout drives the three-step checkout wizard and the order
// submission that ends it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/cart"
	"github.com/Cheertaboi/jewelry-storefront/internal/concurrency"
	"github.com/Cheertaboi/jewelry-storefront/internal/guard"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
	"github.com/Cheertaboi/jewelry-storefront/internal/validation"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrAuthRequired     = errors.New("login required")
	ErrAddressPersist   = errors.New("address could not be saved")
	ErrInvalidStep      = errors.New("action not allowed at this step")
	ErrOrderPlaced      = errors.New("order already placed")
	ErrSubmitInProgress = errors.New("order submission already in progress")
	ErrAddressNotFound  = errors.New("saved address not found")
	ErrAlreadyPaid      = errors.New("order is already paid")
)

const checkoutPath = "/checkout"

// Backend is the slice of the storefront API the controller calls
type Backend interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListAddresses(ctx context.Context) ([]models.Address, error)
	CreateAddress(ctx context.Context, a models.Address) (*models.Address, error)
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	CreatePaymentOrder(ctx context.Context, orderID string) (*models.GatewayOrder, error)
	PaymentStatus(ctx context.Context, orderID string) (models.PaymentStatus, error)
}

// Recorder receives checkout events for metrics
type Recorder interface {
	StepChanged(from, to Step)
	ValidationFailed(step Step, fields int)
	OrderPlaced(method models.PaymentMethod)
	PaymentResolved(status OutcomeStatus)
}

type nopRecorder struct{}

func (nopRecorder) StepChanged(Step, Step)           {}
func (nopRecorder) ValidationFailed(Step, int)       {}
func (nopRecorder) OrderPlaced(models.PaymentMethod) {}
func (nopRecorder) PaymentResolved(OutcomeStatus)    {}

type Config struct {
	PollInterval      time.Duration
	PollMaxAttempts   int
	StockCheckWorkers int
	SubmitGuardTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      3 * time.Second,
		PollMaxAttempts:   20,
		StockCheckWorkers: 4,
		SubmitGuardTTL:    2 * time.Minute,
	}
}

type Controller struct {
	backend   Backend
	engine    *pricing.Engine
	validator *validation.Validator
	guard     guard.Guard
	recorder  Recorder
	logger    *zap.Logger
	cfg       Config
	clock     func() time.Time
}

type Option func(*Controller)

func WithGuard(g guard.Guard) Option {
	return func(c *Controller) { c.guard = g }
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.clock = now }
}

func NewController(b Backend, e *pricing.Engine, v *validation.Validator, opts ...Option) *Controller {
	c := &Controller{
		backend:   b,
		engine:    e,
		validator: v,
		guard:     guard.NewMemoryGuard(),
		recorder:  nopRecorder{},
		logger:    zap.NewNop(),
		cfg:       DefaultConfig(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.PollMaxAttempts <= 0 {
		c.cfg.PollMaxAttempts = 1
	}
	if c.cfg.StockCheckWorkers <= 0 {
		c.cfg.StockCheckWorkers = 1
	}
	return c
}

// Start opens a checkout session for an authenticated user. Every cart line
// is re-checked against the catalog first; lines whose stock dropped are
// clamped or removed and reported as adjustments.
func (c *Controller) Start(ctx context.Context, sessionID, userID string, crt *cart.Cart) (*Session, []cart.Adjustment, error) {
	if userID == "" {
		e := apperr.AuthRequired(checkoutPath)
		e.Err = ErrAuthRequired
		return nil, nil, e
	}
	if crt.IsEmpty() {
		return nil, nil, emptyCart()
	}

	adjustments, err := c.refreshStock(ctx, crt)
	if err != nil {
		return nil, adjustments, err
	}
	if crt.IsEmpty() {
		return nil, adjustments, emptyCart()
	}

	s := &Session{
		ID:             sessionID,
		UserID:         userID,
		Step:           StepShipping,
		SameAsShipping: true,
		ShippingMethod: c.engine.Options()[0].ID,
		StartedAt:      c.clock().UTC(),
	}

	saved, err := c.backend.ListAddresses(ctx)
	if err != nil {
		c.logger.Warn("could not prefill saved address", zap.String("session_id", sessionID), zap.Error(err))
	} else if a, ok := defaultAddress(saved); ok {
		s.Shipping = a
	}
	return s, adjustments, nil
}

func (c *Controller) refreshStock(ctx context.Context, crt *cart.Cart) ([]cart.Adjustment, error) {
	ids := make([]string, len(crt.Items))
	for i, it := range crt.Items {
		ids[i] = it.ID
	}
	stock := make([]int, len(ids))

	err := concurrency.ForEach(ctx, c.cfg.StockCheckWorkers, len(ids), func(ctx context.Context, i int) error {
		p, err := c.backend.GetProduct(ctx, ids[i])
		if err != nil {
			return fmt.Errorf("stock check %s: %w", ids[i], err)
		}
		stock[i] = p.StockQuantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	var adjustments []cart.Adjustment
	for i, id := range ids {
		adj, err := crt.UpdateStock(id, stock[i])
		if err != nil {
			return adjustments, err
		}
		if adj != nil {
			adjustments = append(adjustments, *adj)
		}
	}
	return adjustments, nil
}

func defaultAddress(saved []models.Address) (models.Address, bool) {
	for _, a := range saved {
		if a.IsDefault {
			return a, true
		}
	}
	if len(saved) > 0 {
		return saved[0], true
	}
	return models.Address{}, false
}

func emptyCart() error {
	return apperr.Wrap(apperr.KindValidation, "empty_cart", "Your cart is empty", ErrEmptyCart)
}

func editable(s *Session) error {
	if s.Completed() {
		return apperr.Wrap(apperr.KindValidation, "order_already_placed",
			"This order has already been placed", ErrOrderPlaced)
	}
	return nil
}

// SetShipping replaces the shipping form. Edited addresses are unsaved
// until submission persists them.
func (c *Controller) SetShipping(s *Session, a models.Address) error {
	if err := editable(s); err != nil {
		return err
	}
	s.Shipping = a.WithoutID()
	return nil
}

// SetBilling replaces the billing form
func (c *Controller) SetBilling(s *Session, a models.Address) error {
	if err := editable(s); err != nil {
		return err
	}
	s.Billing = a.WithoutID()
	return nil
}

// SetSameAsShipping toggles billing to follow the shipping address
func (c *Controller) SetSameAsShipping(s *Session, same bool) error {
	if err := editable(s); err != nil {
		return err
	}
	s.SameAsShipping = same
	return nil
}

// SetPayment validates the payment fields and keeps the selection. Card
// numbers and CVVs are checked here and never stored: the session keeps
// only the last four digits, the name and the expiry.
func (c *Controller) SetPayment(s *Session, p models.PaymentSelection) error {
	if err := editable(s); err != nil {
		return err
	}
	if _, masked := p.(models.MaskedCard); masked {
		return apperr.Validation("Please correct the highlighted fields",
			map[string]string{"payment.number": "Card number is required"})
	}
	if fields := c.validator.Payment(p); fields != nil {
		out := validation.FieldErrors{}
		out.Merge("payment.", fields)
		c.recorder.ValidationFailed(StepBillingPayment, len(out))
		return apperr.Validation("Please correct the highlighted fields", out)
	}
	if card, ok := p.(models.Card); ok {
		p = card.Masked()
	}
	s.Payment = models.PaymentChoice{PaymentSelection: p}
	return nil
}

// SetShippingMethod selects a delivery speed; an empty id picks the first
// configured option
func (c *Controller) SetShippingMethod(s *Session, id pricing.OptionID) error {
	if err := editable(s); err != nil {
		return err
	}
	if id == "" {
		id = c.engine.Options()[0].ID
	}
	if !c.engine.HasOption(id) {
		return apperr.Validation("Select a delivery option",
			map[string]string{"shippingMethod": "Unknown delivery option"})
	}
	s.ShippingMethod = id
	return nil
}

// UseSavedAddress copies one of the user's saved addresses, with its id,
// into the shipping or billing slot
func (c *Controller) UseSavedAddress(ctx context.Context, s *Session, addressID string, role AddressRole) error {
	if err := editable(s); err != nil {
		return err
	}
	saved, err := c.backend.ListAddresses(ctx)
	if err != nil {
		return err
	}
	for _, a := range saved {
		if a.ID != addressID {
			continue
		}
		switch role {
		case RoleBilling:
			s.Billing = a
			s.SameAsShipping = false
		default:
			s.Shipping = a
		}
		return nil
	}
	return apperr.Wrap(apperr.KindValidation, "address_not_found", "That saved address no longer exists", ErrAddressNotFound)
}

// Validate runs the field checks of one step without moving the cursor
func (c *Controller) Validate(s *Session, step Step) validation.FieldErrors {
	out := validation.FieldErrors{}
	switch step {
	case StepShipping:
		out.Merge("shipping.", c.validator.Address(s.Shipping))
		if !c.engine.HasOption(s.ShippingMethod) {
			out["shippingMethod"] = "Select a delivery option"
		}
	case StepBillingPayment:
		if !s.SameAsShipping {
			out.Merge("billing.", c.validator.Address(s.Billing))
		}
		out.Merge("payment.", c.validator.Payment(s.Payment.PaymentSelection))
	case StepReview:
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Next advances one step when the current step validates. At Review it is a
// no-op; the only way forward from there is PlaceOrder.
func (c *Controller) Next(s *Session) error {
	if err := editable(s); err != nil {
		return err
	}
	if s.Step >= StepReview {
		return nil
	}
	if fields := c.Validate(s, s.Step); fields != nil {
		c.recorder.ValidationFailed(s.Step, len(fields))
		return apperr.Validation("Please correct the highlighted fields", fields)
	}
	from := s.Step
	s.Step++
	c.recorder.StepChanged(from, s.Step)
	return nil
}

// Back moves one step back; at Shipping it does nothing
func (c *Controller) Back(s *Session) {
	if s.Completed() || s.Step <= StepShipping {
		return
	}
	from := s.Step
	s.Step--
	c.recorder.StepChanged(from, s.Step)
}

// Totals prices the cart with the session's delivery option
func (c *Controller) Totals(s *Session, crt *cart.Cart) (pricing.Totals, error) {
	return crt.Totals(c.engine, s.ShippingMethod)
}

// PlaceOrder submits the order from the Review step. A session that already
// produced an order returns that outcome again instead of creating another.
func (c *Controller) PlaceOrder(ctx context.Context, s *Session, crt *cart.Cart) (*Outcome, error) {
	if s.Completed() {
		return s.Order, nil
	}
	if s.Step != StepReview {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid_step",
			"Review your order before placing it", ErrInvalidStep)
	}
	for _, step := range []Step{StepShipping, StepBillingPayment} {
		if fields := c.Validate(s, step); fields != nil {
			c.recorder.ValidationFailed(step, len(fields))
			return nil, apperr.Validation("Please correct the highlighted fields", fields)
		}
	}
	if crt.IsEmpty() {
		return nil, emptyCart()
	}

	// 1) Only one submission per session at a time
	claim, ok, err := c.guard.Acquire(ctx, s.ID, c.cfg.SubmitGuardTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "guard_unavailable",
			"We could not place your order right now. Please try again.", err)
	}
	if !ok {
		return nil, apperr.Wrap(apperr.KindValidation, "order_in_progress",
			"Your order is already being placed", ErrSubmitInProgress)
	}
	defer func() {
		if err := c.guard.Release(context.WithoutCancel(ctx), s.ID, claim); err != nil {
			c.logger.Warn("failed to release submit guard", zap.String("session_id", s.ID), zap.Error(err))
		}
	}()

	// 2) Resolve address ids, persisting unsaved addresses first
	shippingID, err := c.resolveAddress(ctx, &s.Shipping)
	if err != nil {
		return nil, err
	}
	billingID := shippingID
	if !s.SameAsShipping {
		if billingID, err = c.resolveAddress(ctx, &s.Billing); err != nil {
			return nil, err
		}
	}

	// 3) Create the order
	method := s.Payment.Method()
	order, err := c.backend.CreateOrder(ctx, models.OrderRequest{
		ShippingAddressID: shippingID,
		BillingAddressID:  billingID,
		ShippingMethod:    string(s.ShippingMethod),
		PaymentMethod:     method,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthRequired {
			return nil, authRequired(err)
		}
		c.logger.Warn("order creation failed", zap.String("session_id", s.ID), zap.Error(err))
		return nil, err
	}

	// 4) The cart is cleared before any payment step so a retry cannot
	// create a second order
	crt.Clear()
	c.recorder.OrderPlaced(method)
	c.logger.Info("order placed",
		zap.String("session_id", s.ID),
		zap.String("order_id", order.ID),
		zap.String("payment_method", string(method)))

	// 5) Cash on delivery is done; online payments need a gateway order
	outcome := &Outcome{OrderID: order.ID, PaymentMethod: method}
	s.Order = outcome
	if !models.IsOnline(s.Payment.PaymentSelection) || order.IsPaid {
		outcome.Status = OutcomePlaced
		outcome.Redirect = orderPath(order.ID)
		return outcome, nil
	}

	gw, err := c.backend.CreatePaymentOrder(ctx, order.ID)
	if err != nil {
		c.logger.Warn("payment order creation failed", zap.String("order_id", order.ID), zap.Error(err))
		outcome.Status = OutcomePaymentFailed
		outcome.Redirect = retryPaymentPath(order.ID)
		outcome.Message = "Your order was placed but payment could not be started. You can retry payment from your orders."
		c.recorder.PaymentResolved(outcome.Status)
		return outcome, nil
	}
	outcome.Status = OutcomeAwaitingPayment
	outcome.Gateway = gw
	return outcome, nil
}

func (c *Controller) resolveAddress(ctx context.Context, a *models.Address) (string, error) {
	if a.Persisted() {
		return a.ID, nil
	}
	if a.Country == "" {
		a.Country = models.DefaultCountry
	}
	saved, err := c.backend.CreateAddress(ctx, *a)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthRequired {
			return "", authRequired(err)
		}
		return "", apperr.Wrap(apperr.KindNetwork, "address_persist_failed",
			"We couldn't save your address. Please try again.", fmt.Errorf("%w: %w", ErrAddressPersist, err))
	}
	a.ID = saved.ID
	return saved.ID, nil
}

func authRequired(cause error) error {
	e := apperr.AuthRequired(checkoutPath)
	e.Err = cause
	return e
}

// AwaitPayment polls the gateway status of an order every PollInterval, at
// most PollMaxAttempts times. It always resolves: paid, failed or timed out.
// Cash on delivery and already paid orders resolve without polling.
func (c *Controller) AwaitPayment(ctx context.Context, orderID string) (*Outcome, error) {
	order, err := c.backend.GetOrder(ctx, orderID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	outcome := &Outcome{OrderID: orderID, PaymentMethod: order.PaymentMethod}

	switch {
	case order.IsPaid || order.PaymentStatus == models.PaymentStatusPaid:
		outcome.Status = OutcomePaid
		outcome.Redirect = orderHistoryPath
		outcome.Message = "Payment received. Thank you for your order!"
		return outcome, nil
	case order.PaymentMethod == models.PaymentCashOnDelivery:
		outcome.Status = OutcomePlaced
		outcome.Redirect = orderPath(orderID)
		return outcome, nil
	}

	for attempt := 1; attempt <= c.cfg.PollMaxAttempts; attempt++ {
		status, err := c.backend.PaymentStatus(ctx, orderID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && apperr.KindOf(err) == apperr.KindAuthRequired:
			return nil, err
		case err != nil:
			c.logger.Debug("payment status poll failed",
				zap.String("order_id", orderID), zap.Int("attempt", attempt), zap.Error(err))
		case status == models.PaymentStatusPaid:
			outcome.Status = OutcomePaid
			outcome.Redirect = orderHistoryPath
			outcome.Message = "Payment received. Thank you for your order!"
			c.recorder.PaymentResolved(outcome.Status)
			return outcome, nil
		case status == models.PaymentStatusFailed:
			outcome.Status = OutcomePaymentFailed
			outcome.Redirect = retryPaymentPath(orderID)
			outcome.Message = "Payment failed. Your order is saved and you can retry payment."
			c.recorder.PaymentResolved(outcome.Status)
			return outcome, nil
		}

		if attempt == c.cfg.PollMaxAttempts {
			break
		}
		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	outcome.Status = OutcomePaymentTimeout
	outcome.Redirect = retryPaymentPath(orderID)
	outcome.Message = "We could not confirm your payment yet. Check your orders or retry payment."
	c.recorder.PaymentResolved(outcome.Status)
	return outcome, nil
}

// RetryPayment opens a new gateway order for an existing unpaid order
func (c *Controller) RetryPayment(ctx context.Context, orderID string) (*Outcome, error) {
	order, err := c.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid || order.PaymentStatus == models.PaymentStatusPaid {
		return nil, apperr.Wrap(apperr.KindValidation, "already_paid", "This order is already paid", ErrAlreadyPaid)
	}
	if order.PaymentMethod == models.PaymentCashOnDelivery {
		return nil, apperr.Wrap(apperr.KindValidation, "not_online_payment",
			"Cash on delivery orders are paid at delivery", ErrInvalidStep)
	}

	gw, err := c.backend.CreatePaymentOrder(ctx, orderID)
	if err != nil {
		if k := apperr.KindOf(err); k == apperr.KindAuthRequired || k == apperr.KindPayment {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindPayment, "payment_init_failed",
			"Payment could not be started. Please try again.", err)
	}
	return &Outcome{
		OrderID:       orderID,
		Status:        OutcomeAwaitingPayment,
		PaymentMethod: order.PaymentMethod,
		Gateway:       gw,
	}, nil
}

// ShippingOptions lists the delivery speeds a session can pick from
func (c *Controller) ShippingOptions() []pricing.ShippingOption {
	return c.engine.Options()
}
