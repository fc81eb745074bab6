package validation

import (
	"regexp"
	"strings"
)

// VINLength is the number of characters in a modern vehicle identification number.
const VINLength = 17

// I, O and Q are never used in a VIN.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// VINResult reports whether a VIN is well formed.
type VINResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// NormalizeVIN trims and upper-cases typed input. Callers normalize at the
// input boundary; ValidateVIN itself does not trim.
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// ValidateVIN checks VIN length and alphabet, case-insensitively. Surrounding
// whitespace counts toward the length.
func ValidateVIN(vin string) VINResult {
	normalized := strings.ToUpper(vin)
	switch {
	case normalized == "":
		return VINResult{Valid: false, Message: "VIN is required"}
	case len(normalized) != VINLength:
		return VINResult{Valid: false, Message: "VIN must be exactly 17 characters"}
	case !vinPattern.MatchString(normalized):
		return VINResult{Valid: false, Message: "VIN contains invalid characters (I, O and Q are not allowed)"}
	default:
		return VINResult{Valid: true, Message: "Valid VIN format"}
	}
}
