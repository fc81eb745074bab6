package enums

import "fmt"

// CustomerType is the pricing tier a quote is requested for.
type CustomerType string

const (
	CustomerTypeRetail    CustomerType = "retail"
	CustomerTypeWholesale CustomerType = "wholesale"
)

var validCustomerTypes = []CustomerType{
	CustomerTypeRetail,
	CustomerTypeWholesale,
}

// String implements fmt.Stringer.
func (v CustomerType) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v CustomerType) IsValid() bool {
	for _, candidate := range validCustomerTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseCustomerType converts raw input into a CustomerType.
func ParseCustomerType(value string) (CustomerType, error) {
	for _, candidate := range validCustomerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid customer type %q", value)
}
