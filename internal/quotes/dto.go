package quotes

import (
	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

// heroPayload is the body of POST /api/hero/quote.
type heroPayload struct {
	ProductType   string             `json:"product_type"`
	TermYears     int                `json:"term_years"`
	CoverageLimit int                `json:"coverage_limit"`
	CustomerType  enums.CustomerType `json:"customer_type"`
}

// vscPayload is the body of POST /api/vsc/quote.
type vscPayload struct {
	VIN           string             `json:"vin,omitempty"`
	Make          string             `json:"make"`
	Model         string             `json:"model"`
	Year          int                `json:"year"`
	Mileage       int                `json:"mileage"`
	CoverageLevel string             `json:"coverage_level"`
	TermMonths    int                `json:"term_months"`
	CustomerType  enums.CustomerType `json:"customer_type"`
}

type quoteResponse struct {
	Success       bool                   `json:"success"`
	Error         string                 `json:"error"`
	QuoteID       string                 `json:"quote_id"`
	ID            string                 `json:"id"`
	ProductName   string                 `json:"product_name"`
	CoverageLevel string                 `json:"coverage_level"`
	Pricing       types.PricingBreakdown `json:"pricing_breakdown"`
}
