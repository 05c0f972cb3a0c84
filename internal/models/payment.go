package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentUPI            PaymentMethod = "upi"
	PaymentCashOnDelivery PaymentMethod = "cod"
)

// PaymentSelection is one of Card, UPI or CashOnDelivery.
// The unexported marker keeps the set closed to this package.
type PaymentSelection interface {
	Method() PaymentMethod
	isPaymentSelection()
}

type Card struct {
	Number string `json:"number" validate:"required,luhn"`
	Name   string `json:"name" validate:"required,alpha_space"`
	Expiry string `json:"expiry" validate:"required,card_expiry"`
	CVV    string `json:"cvv" validate:"required,digits,min=3,max=4"`
}

// Masked drops the number and CVV, keeping what can be shown back to the
// shopper
func (c Card) Masked() MaskedCard {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
	last4 := digits
	if len(digits) > 4 {
		last4 = digits[len(digits)-4:]
	}
	return MaskedCard{Last4: last4, Name: c.Name, Expiry: c.Expiry}
}

// MaskedCard is a validated card as kept in a checkout session
type MaskedCard struct {
	Last4  string `json:"last4" validate:"required,digits,len=4"`
	Name   string `json:"name" validate:"required,alpha_space"`
	Expiry string `json:"expiry" validate:"required,card_expiry"`
}

type UPI struct {
	ID string `json:"id" validate:"required,upi"`
}

type CashOnDelivery struct{}

func (Card) Method() PaymentMethod           { return PaymentCard }
func (MaskedCard) Method() PaymentMethod     { return PaymentCard }
func (UPI) Method() PaymentMethod            { return PaymentUPI }
func (CashOnDelivery) Method() PaymentMethod { return PaymentCashOnDelivery }

func (Card) isPaymentSelection()           {}
func (MaskedCard) isPaymentSelection()     {}
func (UPI) isPaymentSelection()            {}
func (CashOnDelivery) isPaymentSelection() {}

// IsOnline reports whether the method settles through the payment gateway
func IsOnline(p PaymentSelection) bool {
	switch p.(type) {
	case Card, MaskedCard, UPI:
		return true
	case CashOnDelivery:
		return false
	default:
		return false
	}
}

// PaymentChoice carries an optional PaymentSelection through JSON as
// {"method": "...", "card": {...}} / {"method": "upi", "upi": {...}}.
// Card numbers and CVVs are accepted on input but always written out masked.
type PaymentChoice struct {
	PaymentSelection
}

// Selected reports whether a payment method has been chosen
func (p PaymentChoice) Selected() bool {
	return p.PaymentSelection != nil
}

type paymentWire struct {
	Method PaymentMethod `json:"method,omitempty"`
	Card   *cardWire     `json:"card,omitempty"`
	UPI    *UPI          `json:"upi,omitempty"`
}

type cardWire struct {
	Number string `json:"number,omitempty"`
	CVV    string `json:"cvv,omitempty"`
	Last4  string `json:"last4,omitempty"`
	Name   string `json:"name"`
	Expiry string `json:"expiry"`
}

func (w cardWire) selection() PaymentSelection {
	if w.Number == "" && w.CVV == "" && w.Last4 != "" {
		return MaskedCard{Last4: w.Last4, Name: w.Name, Expiry: w.Expiry}
	}
	return Card{Number: w.Number, Name: w.Name, Expiry: w.Expiry, CVV: w.CVV}
}

func maskedWire(m MaskedCard) *cardWire {
	return &cardWire{Last4: m.Last4, Name: m.Name, Expiry: m.Expiry}
}

// MarshalJSON implements json.Marshaler
func (p PaymentChoice) MarshalJSON() ([]byte, error) {
	var w paymentWire
	switch sel := p.PaymentSelection.(type) {
	case nil:
	case Card:
		w.Method, w.Card = PaymentCard, maskedWire(sel.Masked())
	case MaskedCard:
		w.Method, w.Card = PaymentCard, maskedWire(sel)
	case UPI:
		w.Method, w.UPI = PaymentUPI, &sel
	case CashOnDelivery:
		w.Method = PaymentCashOnDelivery
	default:
		return nil, fmt.Errorf("unsupported payment selection %T", sel)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler
func (p *PaymentChoice) UnmarshalJSON(data []byte) error {
	var w paymentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Method {
	case "":
		p.PaymentSelection = nil
	case PaymentCard:
		if w.Card == nil {
			return fmt.Errorf("payment method card requires card details")
		}
		p.PaymentSelection = w.Card.selection()
	case PaymentUPI:
		if w.UPI == nil {
			return fmt.Errorf("payment method upi requires upi details")
		}
		p.PaymentSelection = *w.UPI
	case PaymentCashOnDelivery:
		p.PaymentSelection = CashOnDelivery{}
	default:
		return fmt.Errorf("unknown payment method %q", w.Method)
	}
	return nil
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// GatewayOrder is what the redirect/popup payment flow needs to start
type GatewayOrder struct {
	ID       string `json:"id"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Key      string `json:"key,omitempty"`
}
