package checkout

import (
	"time"

	"github.com/Cheertaboi/jewelry-storefront/internal/models"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
)

// Step is the wizard cursor
type Step int

const (
	StepShipping Step = iota + 1
	StepBillingPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepBillingPayment:
		return "billing_payment"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// AddressRole says which of the session's addresses an update targets
type AddressRole string

const (
	RoleShipping AddressRole = "shipping"
	RoleBilling  AddressRole = "billing"
)

// Session is one visitor's checkout wizard. It is owned by a single session
// store entry and mutated only through the Controller.
type Session struct {
	ID             string               `json:"id"`
	UserID         string               `json:"userId"`
	Step           Step                 `json:"step"`
	Shipping       models.Address       `json:"shipping"`
	Billing        models.Address       `json:"billing"`
	SameAsShipping bool                 `json:"sameAsShipping"`
	Payment        models.PaymentChoice `json:"payment"`
	ShippingMethod pricing.OptionID     `json:"shippingMethod"`
	Order          *Outcome             `json:"order,omitempty"`
	StartedAt      time.Time            `json:"startedAt"`
}

// Completed reports whether an order has been created from this session
func (s *Session) Completed() bool {
	return s.Order != nil
}

// BillingAddress is the address billed: a copy of shipping when
// SameAsShipping is set
func (s *Session) BillingAddress() models.Address {
	if s.SameAsShipping {
		return s.Shipping
	}
	return s.Billing
}

type OutcomeStatus string

const (
	OutcomePlaced          OutcomeStatus = "placed"
	OutcomeAwaitingPayment OutcomeStatus = "awaiting_payment"
	OutcomePaid            OutcomeStatus = "paid"
	OutcomePaymentFailed   OutcomeStatus = "payment_failed"
	OutcomePaymentTimeout  OutcomeStatus = "payment_timeout"
)

// Outcome is the result of submitting an order or settling its payment.
// Redirect is where the UI should navigate next.
type Outcome struct {
	OrderID       string               `json:"orderId"`
	Status        OutcomeStatus        `json:"status"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	Gateway       *models.GatewayOrder `json:"gateway,omitempty"`
	Redirect      string               `json:"redirect,omitempty"`
	Message       string               `json:"message,omitempty"`
}

func orderPath(orderID string) string {
	return "/orders/" + orderID
}

func retryPaymentPath(orderID string) string {
	return "/orders/" + orderID + "/pay"
}

const orderHistoryPath = "/orders"
