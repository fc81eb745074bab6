package enums

import "fmt"

// PaymentState tracks the card collection lifecycle for a single payment attempt.
type PaymentState string

const (
	PaymentStateForm         PaymentState = "form"
	PaymentStatePaymentInfo  PaymentState = "payment_info"
	PaymentStateModalOpen    PaymentState = "modal_open"
	PaymentStateSuccess      PaymentState = "success"
	PaymentStateFailed       PaymentState = "failed"
	PaymentStateConfirmation PaymentState = "confirmation"
)

var validPaymentStates = []PaymentState{
	PaymentStateForm,
	PaymentStatePaymentInfo,
	PaymentStateModalOpen,
	PaymentStateSuccess,
	PaymentStateFailed,
	PaymentStateConfirmation,
}

// String implements fmt.Stringer.
func (v PaymentState) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePaymentState converts raw input into a PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}
