package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCardNumber(t *testing.T) {
	valid := []string{
		"4111111111111111",
		"4111 1111 1111 1111",
		"4111-1111-1111-1111",
		"378282246310005",
		"5555555555554444",
		"6011111111111117",
		"4222222222222",
	}
	for _, number := range valid {
		assert.True(t, ValidateCardNumber(number), number)
	}

	invalid := []string{
		"",
		"4111111111111112",
		"411111111111",
		"41111111111111111111",
		"4111a11111111111",
	}
	for _, number := range invalid {
		assert.False(t, ValidateCardNumber(number), number)
	}
}

func TestValidateCardNumberDetectsSingleDigitChanges(t *testing.T) {
	base := []byte("4111111111111111")
	assert.True(t, ValidateCardNumber(string(base)))
	for i := range base {
		for d := byte('0'); d <= '9'; d++ {
			if d == base[i] {
				continue
			}
			mutated := append([]byte(nil), base...)
			mutated[i] = d
			assert.False(t, ValidateCardNumber(string(mutated)), "position %d digit %c", i, d)
		}
	}
}

func TestDetectCardTypeAndCVV(t *testing.T) {
	assert.Equal(t, CardAmex, DetectCardType("378282246310005"))
	assert.Equal(t, CardAmex, DetectCardType("34 0000 0000 00009"))
	assert.Equal(t, CardVisa, DetectCardType("4111111111111111"))
	assert.Equal(t, CardMasterCard, DetectCardType("5555555555554444"))
	assert.Equal(t, CardMasterCard, DetectCardType("2221000000000009"))
	assert.Equal(t, CardDiscover, DetectCardType("6011111111111117"))
	assert.Equal(t, CardUnknown, DetectCardType("9999"))

	assert.True(t, ValidateCVV("1234", CardAmex))
	assert.False(t, ValidateCVV("123", CardAmex))
	assert.True(t, ValidateCVV("123", CardVisa))
	assert.False(t, ValidateCVV("1234", CardVisa))
	assert.False(t, ValidateCVV("12a", CardVisa))
	assert.False(t, ValidateCVV("", CardUnknown))
}

func TestValidateExpiryDateAt(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

	assert.True(t, ValidateExpiryDateAt(10, 2026, now), "current month")
	assert.True(t, ValidateExpiryDateAt(11, 2026, now))
	assert.True(t, ValidateExpiryDateAt(1, 2027, now))
	assert.True(t, ValidateExpiryDateAt(12, 30, now), "two-digit year")

	assert.False(t, ValidateExpiryDateAt(9, 2026, now), "past month")
	assert.False(t, ValidateExpiryDateAt(12, 2025, now), "past year")
	assert.False(t, ValidateExpiryDateAt(0, 2027, now))
	assert.False(t, ValidateExpiryDateAt(13, 2027, now))
	assert.False(t, ValidateExpiryDateAt(1, 25, now))
}
