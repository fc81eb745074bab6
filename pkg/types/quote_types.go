package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quoteflow/pkg/enums"
)

// HeroQuoteRequest prices a Hero protection product.
type HeroQuoteRequest struct {
	ProductType   string             `json:"product_type"`
	TermYears     int                `json:"term_years"`
	CoverageLimit int                `json:"coverage_limit"`
	CustomerType  enums.CustomerType `json:"customer_type"`
}

// VSCQuoteRequest prices a Vehicle Service Contract.
type VSCQuoteRequest struct {
	VIN           string             `json:"vin,omitempty"`
	Make          string             `json:"make"`
	Model         string             `json:"model"`
	Year          int                `json:"year"`
	Mileage       int                `json:"mileage"`
	CoverageLevel string             `json:"coverage_level"`
	TermMonths    int                `json:"term_months"`
	CustomerType  enums.CustomerType `json:"customer_type"`
}

// QuoteRequest is a tagged union: exactly one of Hero or VSC is set, matching Kind.
type QuoteRequest struct {
	Kind enums.QuoteKind   `json:"kind"`
	Hero *HeroQuoteRequest `json:"hero,omitempty"`
	VSC  *VSCQuoteRequest  `json:"vsc,omitempty"`
}

// NewHeroRequest wraps a hero form.
func NewHeroRequest(r HeroQuoteRequest) QuoteRequest {
	return QuoteRequest{Kind: enums.QuoteKindHero, Hero: &r}
}

// NewVSCRequest wraps a VSC form.
func NewVSCRequest(r VSCQuoteRequest) QuoteRequest {
	return QuoteRequest{Kind: enums.QuoteKindVSC, VSC: &r}
}

// CustomerType returns the pricing tier carried by whichever variant is set.
func (q QuoteRequest) CustomerType() enums.CustomerType {
	switch {
	case q.Hero != nil:
		return q.Hero.CustomerType
	case q.VSC != nil:
		return q.VSC.CustomerType
	default:
		return ""
	}
}

// VehicleInfo holds decoded or hand-entered vehicle attributes.
type VehicleInfo struct {
	Make          string `json:"make"`
	Model         string `json:"model"`
	Year          int    `json:"year"`
	Trim          string `json:"trim,omitempty"`
	Engine        string `json:"engine,omitempty"`
	AutoPopulated bool   `json:"auto_populated"`
}

// Eligibility is the derived coverage decision for a vehicle and mileage.
type Eligibility struct {
	Eligible       bool      `json:"eligible"`
	Warnings       []string  `json:"warnings"`
	Restrictions   []string  `json:"restrictions"`
	VehicleAge     int       `json:"vehicle_age"`
	AssessmentDate time.Time `json:"assessment_date"`
}

// PricingBreakdown is the priced total returned by the backend.
type PricingBreakdown struct {
	BasePrice  decimal.Decimal `json:"base_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	AdminFee   decimal.Decimal `json:"admin_fee"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Quote is a priced offer. Raw keeps the server object untouched; it is
// replaced wholesale on every new submission.
type Quote struct {
	ID            string           `json:"quote_id"`
	Kind          enums.QuoteKind  `json:"kind"`
	ProductType   string           `json:"product_type,omitempty"`
	ProductName   string           `json:"product_name,omitempty"`
	TermYears     int              `json:"term_years,omitempty"`
	TermMonths    int              `json:"term_months,omitempty"`
	CoverageLimit int              `json:"coverage_limit,omitempty"`
	CoverageLevel string           `json:"coverage_level,omitempty"`
	Pricing       PricingBreakdown `json:"pricing_breakdown"`
	Request       QuoteRequest     `json:"request"`
	Raw           json.RawMessage  `json:"raw,omitempty"`
}

// OrderNumber derives the gateway order number from the quote id.
func (q Quote) OrderNumber() string {
	return "ORD-" + q.ID
}

// Amount is the total the customer is charged.
func (q Quote) Amount() decimal.Decimal {
	return q.Pricing.TotalPrice
}

// ShareableQuote is a reseller quote bound to a public link and customer.
type ShareableQuote struct {
	QuoteID        string          `json:"quote_id"`
	ShareURL       string          `json:"share_url"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Customer       CustomerInfo    `json:"customer"`
	Notes          string          `json:"notes,omitempty"`
	Quote          Quote           `json:"quote"`
	EmailedAt      *time.Time      `json:"emailed_at,omitempty"`
}

// PaymentResult is produced once a charge is approved and recorded.
type PaymentResult struct {
	Success            bool            `json:"success"`
	TransactionNumber  string          `json:"transaction_number"`
	ConfirmationNumber string          `json:"confirmation_number"`
	Amount             decimal.Decimal `json:"amount"`
	Status             string          `json:"status"`
	NextSteps          []string        `json:"next_steps"`
}
