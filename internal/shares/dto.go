package shares

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

type generatePayload struct {
	QuoteType       enums.QuoteKind        `json:"quote_type"`
	QuoteData       any                    `json:"quote_data"`
	Pricing         types.PricingBreakdown `json:"pricing_breakdown"`
	CustomerInfo    types.CustomerInfo     `json:"customer_info"`
	Notes           string                 `json:"notes,omitempty"`
	CreateShareable bool                   `json:"create_shareable"`
}

type generateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	QuoteID string `json:"quote_id"`
	Sharing struct {
		ShareURL string `json:"share_url"`
	} `json:"sharing"`
	ResellerInfo struct {
		CommissionRate decimal.Decimal `json:"commission_rate"`
	} `json:"reseller_info"`
}

type emailPayload struct {
	QuoteID       string `json:"quote_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	ShareURL      string `json:"share_url"`
	Notes         string `json:"notes"`
}

type emailResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
