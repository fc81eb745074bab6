package enums

import (
	"fmt"
	"strings"
)

// Role identifies who is driving a quote flow.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleReseller Role = "reseller"
)

var validRoles = []Role{
	RoleCustomer,
	RoleReseller,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CustomerType returns the pricing tier implied by the role. Resellers always buy wholesale.
func (r Role) CustomerType() CustomerType {
	if r == RoleReseller {
		return CustomerTypeWholesale
	}
	return CustomerTypeRetail
}

// ParseRole converts raw input into a Role. Unknown non-empty values are rejected.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
