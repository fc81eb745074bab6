package enums

import "fmt"

// FlowPhase is the single tagged state of a quote flow page.
type FlowPhase string

const (
	FlowPhaseIdle             FlowPhase = "idle"
	FlowPhaseQuoteReady       FlowPhase = "quote_ready"
	FlowPhaseAwaitingPayment  FlowPhase = "awaiting_payment"
	FlowPhasePaymentSucceeded FlowPhase = "payment_succeeded"
	FlowPhaseSharePending     FlowPhase = "share_pending"
	FlowPhaseShareReady       FlowPhase = "share_ready"
)

var validFlowPhases = []FlowPhase{
	FlowPhaseIdle,
	FlowPhaseQuoteReady,
	FlowPhaseAwaitingPayment,
	FlowPhasePaymentSucceeded,
	FlowPhaseSharePending,
	FlowPhaseShareReady,
}

// String implements fmt.Stringer.
func (v FlowPhase) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v FlowPhase) IsValid() bool {
	for _, candidate := range validFlowPhases {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseFlowPhase converts raw input into a FlowPhase.
func ParseFlowPhase(value string) (FlowPhase, error) {
	for _, candidate := range validFlowPhases {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flow phase %q", value)
}
