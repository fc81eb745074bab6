package flow

import (
	"fmt"
	"time"

	"github.com/angelmondragon/quoteflow/internal/payments"
	"github.com/angelmondragon/quoteflow/internal/sharedquotes"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

// Actor is whoever drives a request. Role comes from verified session claims;
// anonymous actors only reach shared-link flows.
type Actor struct {
	UserID  string
	Role    enums.Role
	Session backend.Session
}

// VehicleState is the VSC vehicle form as edited so far.
type VehicleState struct {
	VIN         string             `json:"vin,omitempty"`
	VINMessage  string             `json:"vin_message,omitempty"`
	Mileage     int                `json:"mileage,omitempty"`
	Info        *types.VehicleInfo `json:"info,omitempty"`
	Eligibility *types.Eligibility `json:"eligibility,omitempty"`
	DecodeError string             `json:"decode_error,omitempty"`
}

// SharedContext is carried by flows opened from a reseller's public link.
type SharedContext struct {
	Token    string                       `json:"token"`
	Reseller sharedquotes.ResellerSummary `json:"reseller"`
	Accepted bool                         `json:"accepted"`
}

// Page is one quote page. Phase is the single source of truth; the optional
// fields are only populated in the phases that own them (see Validate).
type Page struct {
	ID           string                `json:"id"`
	OwnerID      string                `json:"owner_id,omitempty"`
	Role         enums.Role            `json:"role"`
	CustomerType enums.CustomerType    `json:"customer_type"`
	Phase        enums.FlowPhase       `json:"phase"`
	Vehicle      VehicleState          `json:"vehicle"`
	Customer     types.CustomerInfo    `json:"customer"`
	Quote        *types.Quote          `json:"quote,omitempty"`
	Payment      *payments.Session     `json:"payment,omitempty"`
	Share        *types.ShareableQuote `json:"share,omitempty"`
	Shared       *SharedContext        `json:"shared,omitempty"`
	Error        string                `json:"error,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// PaymentResult returns the recorded payment, if any.
func (p *Page) PaymentResult() *types.PaymentResult {
	if p == nil || p.Payment == nil {
		return nil
	}
	return p.Payment.Result
}

// Validate checks that the optional fields match the phase.
func (p *Page) Validate() error {
	if !p.Phase.IsValid() {
		return fmt.Errorf("unknown phase %q", p.Phase)
	}
	hasQuote := p.Quote != nil
	hasPayment := p.Payment != nil
	hasShare := p.Share != nil

	switch p.Phase {
	case enums.FlowPhaseIdle:
		if hasQuote || hasPayment || hasShare {
			return fmt.Errorf("idle page carries quote state")
		}
	case enums.FlowPhaseQuoteReady, enums.FlowPhaseSharePending:
		if !hasQuote || hasPayment || hasShare {
			return fmt.Errorf("%s page needs a quote and nothing else", p.Phase)
		}
	case enums.FlowPhaseAwaitingPayment:
		if !hasQuote || !hasPayment || hasShare {
			return fmt.Errorf("awaiting_payment page needs a quote and a payment")
		}
	case enums.FlowPhasePaymentSucceeded:
		if !hasQuote || !hasPayment || p.Payment.Result == nil || hasShare {
			return fmt.Errorf("payment_succeeded page needs a recorded payment")
		}
	case enums.FlowPhaseShareReady:
		if !hasQuote || !hasShare || hasPayment {
			return fmt.Errorf("share_ready page needs a quote and a share")
		}
	}
	return nil
}
