package validation

import (
	"strings"
	"time"
	"unicode"
)

// Card brands recognised by DetectCardType.
const (
	CardAmex       = "American Express"
	CardVisa       = "Visa"
	CardMasterCard = "MasterCard"
	CardDiscover   = "Discover"
	CardUnknown    = "Unknown"
)

// StripCardNumber removes the spaces and dashes customers type between digit groups.
func StripCardNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateCardNumber accepts 13 to 19 digits that pass the Luhn checksum.
func ValidateCardNumber(number string) bool {
	digits := StripCardNumber(number)
	if len(digits) < 13 || len(digits) > 19 || !allDigits(digits) {
		return false
	}
	return luhn(digits)
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
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

// DetectCardType identifies the brand from the leading digits.
func DetectCardType(number string) string {
	digits := StripCardNumber(number)
	switch {
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return CardAmex
	case strings.HasPrefix(digits, "4"):
		return CardVisa
	case hasPrefixInRange(digits, 2, 51, 55), hasPrefixInRange(digits, 4, 2221, 2720):
		return CardMasterCard
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"), hasPrefixInRange(digits, 3, 644, 649):
		return CardDiscover
	default:
		return CardUnknown
	}
}

func hasPrefixInRange(digits string, width, lo, hi int) bool {
	if len(digits) < width {
		return false
	}
	n := 0
	for _, r := range digits[:width] {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n >= lo && n <= hi
}

// ValidateCVV requires four digits for American Express and three otherwise.
func ValidateCVV(cvv, cardType string) bool {
	cvv = strings.TrimSpace(cvv)
	if !allDigits(cvv) {
		return false
	}
	if cardType == CardAmex {
		return len(cvv) == 4
	}
	return len(cvv) == 3
}

// ValidateExpiryDate reports whether month/year is the current month or later.
func ValidateExpiryDate(month, year int) bool {
	return ValidateExpiryDateAt(month, year, time.Now())
}

// ValidateExpiryDateAt is ValidateExpiryDate against a fixed clock. Two-digit
// years are read as 20YY.
func ValidateExpiryDateAt(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	if year >= 0 && year < 100 {
		year += 2000
	}
	curYear, curMonth := now.Year(), int(now.Month())
	if year < curYear {
		return false
	}
	if year == curYear && month < curMonth {
		return false
	}
	return true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
