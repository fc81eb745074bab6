package sharedquotes

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/quoteflow/pkg/types"
)

// ResellerSummary is the public face of the reseller who shared a quote.
type ResellerSummary struct {
	Name        string `json:"name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// SharedQuote is a quote opened through its public link.
type SharedQuote struct {
	Token     string             `json:"token"`
	Quote     types.Quote        `json:"quote"`
	Customer  types.CustomerInfo `json:"customer"`
	Reseller  ResellerSummary    `json:"reseller"`
	Status    string             `json:"status,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// AcceptResult is the backend's answer to accepting a shared quote.
type AcceptResult struct {
	Accepted bool   `json:"accepted"`
	QuoteID  string `json:"quote_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

type sharedQuotePayload struct {
	QuoteID       string                 `json:"quote_id"`
	QuoteType     string                 `json:"quote_type"`
	ProductType   string                 `json:"product_type"`
	ProductName   string                 `json:"product_name"`
	TermYears     int                    `json:"term_years"`
	TermMonths    int                    `json:"term_months"`
	CoverageLimit int                    `json:"coverage_limit"`
	CoverageLevel string                 `json:"coverage_level"`
	Pricing       types.PricingBreakdown `json:"pricing_breakdown"`
}

type loadResponse struct {
	Success      bool               `json:"success"`
	Error        string             `json:"error"`
	Quote        json.RawMessage    `json:"quote"`
	CustomerInfo types.CustomerInfo `json:"customer_info"`
	ResellerInfo ResellerSummary    `json:"reseller_info"`
	Status       string             `json:"status"`
	ExpiresAt    *time.Time         `json:"expires_at"`
}

type acceptPayload struct {
	CustomerInfo types.CustomerInfo `json:"customer_info"`
}

type acceptResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	QuoteID string `json:"quote_id"`
}
