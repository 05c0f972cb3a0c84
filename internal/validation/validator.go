// Package validation checks checkout form input field by field and reports
// failures keyed by the field's JSON name.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

// FieldErrors maps a field name to a human-readable message
type FieldErrors map[string]string

// Error implements the error interface
func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// Merge copies other into f with every key prefixed
func (f FieldErrors) Merge(prefix string, other FieldErrors) {
	for k, v := range other {
		f[prefix+k] = v
	}
}

var (
	alphaSpaceRegex = regexp.MustCompile(`^[A-Za-z]+(?: [A-Za-z]+)*$`)
	upiRegex        = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,256}@[a-zA-Z]{2,64}$`)
	expiryRegex     = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
	cardDigitsRegex = regexp.MustCompile(`^[0-9]{16}$`)
	digitsRegex     = regexp.MustCompile(`^[0-9]+$`)
)

var fieldLabels = map[string]string{
	"firstName":   "First name",
	"lastName":    "Last name",
	"phone":       "Phone number",
	"addressLine": "Address",
	"city":        "City",
	"state":       "State",
	"postalCode":  "PIN code",
	"country":     "Country",
	"number":      "Card number",
	"last4":       "Card number",
	"name":        "Cardholder name",
	"expiry":      "Expiry date",
	"cvv":         "CVV",
	"id":          "UPI ID",
}

// Format failures that read better per field than per tag
var fieldMessages = map[string]string{
	"phone":      "Phone number must be exactly 10 digits",
	"postalCode": "PIN code must be exactly 6 digits",
	"cvv":        "CVV must be 3 or 4 digits",
	"state":      "Select a valid Indian state or union territory",
}

// Validator is safe for concurrent use after construction.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New builds a validator. now supplies the clock for card expiry checks;
// nil means time.Now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	val := &Validator{
		v:   validator.New(validator.WithRequiredStructEnabled()),
		now: now,
	}

	val.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"alpha_space": func(fl validator.FieldLevel) bool {
			return alphaSpaceRegex.MatchString(strings.TrimSpace(fl.Field().String()))
		},
		"digits": func(fl validator.FieldLevel) bool {
			return digitsRegex.MatchString(fl.Field().String())
		},
		"indian_state": func(fl validator.FieldLevel) bool {
			return models.IsIndianState(fl.Field().String())
		},
		"upi": func(fl validator.FieldLevel) bool {
			return upiRegex.MatchString(strings.TrimSpace(fl.Field().String()))
		},
		"luhn": func(fl validator.FieldLevel) bool {
			return ValidCardNumber(fl.Field().String())
		},
		"card_expiry": func(fl validator.FieldLevel) bool {
			return ExpiryValid(fl.Field().String(), val.now())
		},
	}
	for tag, fn := range rules {
		mustRegister(val.v, tag, fn)
	}

	return val
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Address validates every required address field
func (val *Validator) Address(a models.Address) FieldErrors {
	if strings.TrimSpace(a.Country) == "" {
		a.Country = models.DefaultCountry
	}
	return val.check(a)
}

// Payment validates the method-specific fields of a payment selection
func (val *Validator) Payment(p models.PaymentSelection) FieldErrors {
	switch sel := p.(type) {
	case nil:
		return FieldErrors{"method": "Select a payment method"}
	case models.Card:
		return val.check(sel)
	case models.MaskedCard:
		return val.check(sel)
	case models.UPI:
		return val.check(sel)
	case models.CashOnDelivery:
		return nil
	default:
		return FieldErrors{"method": "Unsupported payment method"}
	}
}

func (val *Validator) check(s any) FieldErrors {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{"_": err.Error()}
	}
	out := make(FieldErrors, len(errs))
	for _, e := range errs {
		if _, seen := out[e.Field()]; seen {
			continue
		}
		out[e.Field()] = message(e)
	}
	return out
}

func message(e validator.FieldError) string {
	label, ok := fieldLabels[e.Field()]
	if !ok {
		label = e.Field()
	}
	if e.Tag() == "required" {
		return label + " is required"
	}
	if msg, ok := fieldMessages[e.Field()]; ok {
		return msg
	}
	switch e.Tag() {
	case "alpha_space":
		return label + " must contain only letters"
	case "luhn":
		return "Enter a valid 16-digit card number"
	case "card_expiry":
		return "Enter a valid, unexpired expiry date (MM/YY)"
	case "upi":
		return "Enter a valid UPI ID (e.g. name@bank)"
	case "max":
		return label + " must be at most " + e.Param() + " characters"
	case "digits":
		return label + " must contain only digits"
	default:
		return label + " is invalid"
	}
}

// NormalizeCardNumber strips spaces and dashes
func NormalizeCardNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}

// ValidCardNumber reports whether number is 16 digits and passes the Luhn check
func ValidCardNumber(number string) bool {
	digits := NormalizeCardNumber(number)
	return cardDigitsRegex.MatchString(digits) && Luhn(digits)
}

// Luhn runs the mod-10 checksum over a string of digits
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ExpiryValid reports whether an MM/YY expiry is well-formed and not
// before the month of now. A card is valid through its expiry month.
func ExpiryValid(expiry string, now time.Time) bool {
	m := expiryRegex.FindStringSubmatch(strings.TrimSpace(expiry))
	if m == nil {
		return false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	year += 2000

	curYear, curMonth := now.Year(), int(now.Month())
	if year != curYear {
		return year > curYear
	}
	return month >= curMonth
}
