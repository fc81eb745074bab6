package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// CustomerInfo is the end customer a quote is shared with or paid for.
type CustomerInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// FullName joins the first and last name.
func (c CustomerInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// MissingFields lists the required customer fields that are blank.
func (c CustomerInfo) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(c.LastName) == "" {
		missing = append(missing, "last_name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	return missing
}

// Value serializes the customer to JSON for storage.
func (c CustomerInfo) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan decodes a JSON column into the customer.
func (c *CustomerInfo) Scan(value interface{}) error {
	if value == nil {
		*c = CustomerInfo{}
		return nil
	}
	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("customer info: unsupported scan type %T", value)
	}
	return json.Unmarshal([]byte(raw), c)
}

// BillingInfo is the billing address collected before a card is charged.
type BillingInfo struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country,omitempty"`
}

// MissingFields lists the required billing fields that are blank.
func (b BillingInfo) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(b.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(b.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(b.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(b.ZipCode) == "" {
		missing = append(missing, "zip_code")
	}
	return missing
}

// CountryOrDefault returns the billing country, defaulting to US.
func (b BillingInfo) CountryOrDefault() string {
	country := strings.ToUpper(strings.TrimSpace(b.Country))
	if country == "" {
		return "US"
	}
	return country
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
