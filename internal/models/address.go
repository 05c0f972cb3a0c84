package models

// Address is a shipping or billing address. ID is empty until the backend
// has persisted it.
type Address struct {
	ID          string `json:"id,omitempty"`
	FirstName   string `json:"firstName" validate:"required,alpha_space"`
	LastName    string `json:"lastName" validate:"required,alpha_space"`
	Phone       string `json:"phone" validate:"required,digits,len=10"`
	AddressLine string `json:"addressLine" validate:"required,max=200"`
	City        string `json:"city" validate:"required,alpha_space"`
	State       string `json:"state" validate:"required,indian_state"`
	PostalCode  string `json:"postalCode" validate:"required,digits,len=6"`
	Country     string `json:"country" validate:"required"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

// DefaultCountry is assumed when the form leaves country empty
const DefaultCountry = "India"

// Persisted reports whether the backend has assigned the address an id
func (a Address) Persisted() bool {
	return a.ID != ""
}

// WithoutID returns a copy of the address with the persisted id cleared
func (a Address) WithoutID() Address {
	a.ID = ""
	return a
}

// IndianStates lists the accepted states and union territories
var IndianStates = []string{
	"Andaman and Nicobar Islands",
	"Andhra Pradesh",
	"Arunachal Pradesh",
	"Assam",
	"Bihar",
	"Chandigarh",
	"Chhattisgarh",
	"Dadra and Nagar Haveli and Daman and Diu",
	"Delhi",
	"Goa",
	"Gujarat",
	"Haryana",
	"Himachal Pradesh",
	"Jammu and Kashmir",
	"Jharkhand",
	"Karnataka",
	"Kerala",
	"Ladakh",
	"Lakshadweep",
	"Madhya Pradesh",
	"Maharashtra",
	"Manipur",
	"Meghalaya",
	"Mizoram",
	"Nagaland",
	"Odisha",
	"Puducherry",
	"Punjab",
	"Rajasthan",
	"Sikkim",
	"Tamil Nadu",
	"Telangana",
	"Tripura",
	"Uttar Pradesh",
	"Uttarakhand",
	"West Bengal",
}

var indianStateSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(IndianStates))
	for _, s := range IndianStates {
		m[s] = struct{}{}
	}
	return m
}()

// IsIndianState reports whether s is one of IndianStates
func IsIndianState(s string) bool {
	_, ok := indianStateSet[s]
	return ok
}
