package enums

import "fmt"

// ChargeJournalStatus marks whether an unrecorded charge has been reconciled by support.
type ChargeJournalStatus string

const (
	ChargeJournalStatusOpen     ChargeJournalStatus = "open"
	ChargeJournalStatusResolved ChargeJournalStatus = "resolved"
)

var validChargeJournalStatuss = []ChargeJournalStatus{
	ChargeJournalStatusOpen,
	ChargeJournalStatusResolved,
}

// String implements fmt.Stringer.
func (v ChargeJournalStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v ChargeJournalStatus) IsValid() bool {
	for _, candidate := range validChargeJournalStatuss {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseChargeJournalStatus converts raw input into a ChargeJournalStatus.
func ParseChargeJournalStatus(value string) (ChargeJournalStatus, error) {
	for _, candidate := range validChargeJournalStatuss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid charge journal status %q", value)
}
