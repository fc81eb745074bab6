package products

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// backendProduct is one entry of GET /api/hero/products.
type backendProduct struct {
	ProductCode    string          `json:"product_code"`
	ProductName    string          `json:"product_name"`
	BasePrice      decimal.Decimal `json:"base_price"`
	Pricing        json.RawMessage `json:"pricing"`
	TermsAvailable []int           `json:"terms_available"`
}

type catalogResponse struct {
	Success  bool             `json:"success"`
	Products []backendProduct `json:"products"`
	Error    string           `json:"error"`
}

// Product is the UI shape of a Hero product. Coverage variants that the
// backend lists as separate codes are folded into CoverageLimits.
type Product struct {
	ProductType    string                     `json:"product_type"`
	ProductName    string                     `json:"product_name"`
	BasePrice      decimal.Decimal            `json:"base_price"`
	CoverageLimits []int                      `json:"coverage_limits"`
	TermsAvailable []int                      `json:"terms_available"`
	Pricing        map[string]json.RawMessage `json:"pricing,omitempty"`
}
