package enums

import "fmt"

// QuoteKind discriminates Hero protection quotes from Vehicle Service Contract quotes.
type QuoteKind string

const (
	QuoteKindHero QuoteKind = "hero"
	QuoteKindVSC  QuoteKind = "vsc"
)

var validQuoteKinds = []QuoteKind{
	QuoteKindHero,
	QuoteKindVSC,
}

// String implements fmt.Stringer.
func (v QuoteKind) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v QuoteKind) IsValid() bool {
	for _, candidate := range validQuoteKinds {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseQuoteKind converts raw input into a QuoteKind.
func ParseQuoteKind(value string) (QuoteKind, error) {
	for _, candidate := range validQuoteKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote kind %q", value)
}
