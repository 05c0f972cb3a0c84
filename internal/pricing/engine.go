// Package pricing computes cart totals: subtotal, promo discount, shipping,
// tax and grand total.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type OptionID string

const (
	Standard OptionID = "standard"
	Express  OptionID = "express"
	NextDay  OptionID = "next-day"
)

var (
	ErrUnknownShippingOption = errors.New("unknown shipping option")
	ErrInvalidConfig         = errors.New("invalid pricing config")
)

var hundred = decimal.NewFromInt(100)

type ShippingOption struct {
	ID           OptionID        `json:"id" mapstructure:"id"`
	Label        string          `json:"label" mapstructure:"label"`
	Cost         decimal.Decimal `json:"cost" mapstructure:"cost"`
	EstimateDays int             `json:"estimateDays" mapstructure:"estimate_days"`
}

type Config struct {
	TaxRate decimal.Decimal
	Options []ShippingOption
}

// DefaultConfig is 3% tax with free standard, paid express and next-day delivery
func DefaultConfig() Config {
	return Config{
		TaxRate: decimal.NewFromFloat(0.03),
		Options: []ShippingOption{
			{ID: Standard, Label: "Standard Delivery", Cost: decimal.Zero, EstimateDays: 7},
			{ID: Express, Label: "Express Delivery", Cost: decimal.NewFromInt(150), EstimateDays: 3},
			{ID: NextDay, Label: "Next Day Delivery", Cost: decimal.NewFromInt(250), EstimateDays: 1},
		},
	}
}

// Line is the pricing view of a cart line
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	ItemCount      int             `json:"itemCount"`
	ShippingOption OptionID        `json:"shippingOption"`
}

// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	taxRate decimal.Decimal
	options map[OptionID]ShippingOption
	order   []OptionID
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: tax rate %s must be in [0, 1)", ErrInvalidConfig, cfg.TaxRate)
	}
	if len(cfg.Options) == 0 {
		return nil, fmt.Errorf("%w: at least one shipping option is required", ErrInvalidConfig)
	}

	e := &Engine{
		taxRate: cfg.TaxRate,
		options: make(map[OptionID]ShippingOption, len(cfg.Options)),
	}
	for _, o := range cfg.Options {
		if o.ID == "" {
			return nil, fmt.Errorf("%w: shipping option without id", ErrInvalidConfig)
		}
		if o.Cost.IsNegative() {
			return nil, fmt.Errorf("%w: shipping option %s has negative cost", ErrInvalidConfig, o.ID)
		}
		if _, dup := e.options[o.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate shipping option %s", ErrInvalidConfig, o.ID)
		}
		e.options[o.ID] = o
		e.order = append(e.order, o.ID)
	}
	return e, nil
}

// TaxRate returns the flat tax rate
func (e *Engine) TaxRate() decimal.Decimal {
	return e.taxRate
}

// Options lists shipping options in configuration order
func (e *Engine) Options() []ShippingOption {
	out := make([]ShippingOption, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.options[id])
	}
	return out
}

// HasOption reports whether id names a configured shipping option
func (e *Engine) HasOption(id OptionID) bool {
	_, ok := e.options[id]
	return ok
}

// ShippingCost looks up the fee of a shipping option. An empty id means
// the first configured option.
func (e *Engine) ShippingCost(id OptionID) (decimal.Decimal, error) {
	if id == "" {
		id = e.order[0]
	}
	o, ok := e.options[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownShippingOption, id)
	}
	return o.Cost, nil
}

// Subtotal is Σ unit price × quantity
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Compute prices a cart. discountPercent is zero when no promo is active;
// it is clamped to [0, 100]. Tax applies to the discounted subtotal and is
// rounded to whole units. An empty cart prices to all zeros.
func (e *Engine) Compute(lines []Line, discountPercent decimal.Decimal, option OptionID) (Totals, error) {
	if option == "" {
		option = e.order[0]
	}
	totals := Totals{
		Subtotal:       decimal.Zero,
		Discount:       decimal.Zero,
		Shipping:       decimal.Zero,
		Tax:            decimal.Zero,
		Total:          decimal.Zero,
		ShippingOption: option,
	}

	shipping, err := e.ShippingCost(option)
	if err != nil {
		return Totals{}, err
	}

	for _, l := range lines {
		totals.ItemCount += l.Quantity
	}
	if totals.ItemCount == 0 {
		return totals, nil
	}

	pct := decimal.Max(decimal.Zero, decimal.Min(discountPercent, hundred))

	totals.Subtotal = Subtotal(lines)
	totals.Discount = totals.Subtotal.Mul(pct).Div(hundred).Round(2)
	totals.Shipping = shipping
	totals.Tax = totals.Subtotal.Sub(totals.Discount).Mul(e.taxRate).Round(0)

	total := totals.Subtotal.Sub(totals.Discount).Add(totals.Shipping).Add(totals.Tax)
	totals.Total = decimal.Max(decimal.Zero, total)
	return totals, nil
}
