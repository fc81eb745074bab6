package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

// Hidden form element ids the hosted payment form reads.
const (
	FieldToken            = "token"
	FieldAmount           = "amount"
	FieldCurrency         = "currency"
	FieldOrderNumber      = "orderNumber"
	FieldCardNumber       = "cardNumber"
	FieldCardExpiry       = "cardExpiry"
	FieldCardCVV          = "cardCVV"
	FieldBillingFirstName = "billingFirstName"
	FieldBillingLastName  = "billingLastName"
	FieldBillingEmail     = "billingEmail"
	FieldBillingAddress   = "billingAddress"
	FieldBillingCity      = "billingCity"
	FieldBillingState     = "billingState"
	FieldBillingZip       = "billingZip"
	FieldBillingCountry   = "billingCountry"
)

// Session is one payment modal. A flow holds at most one; opening another
// replaces it by id.
type Session struct {
	ID           string               `json:"id"`
	State        enums.PaymentState   `json:"state"`
	QuoteID      string               `json:"quote_id"`
	OrderNumber  string               `json:"order_number"`
	Amount       decimal.Decimal      `json:"amount"`
	Currency     string               `json:"currency"`
	Customer     types.CustomerInfo   `json:"customer"`
	Billing      types.BillingInfo    `json:"billing"`
	HiddenFields map[string]string    `json:"hidden_fields"`
	Message      string               `json:"message,omitempty"`
	Attempts     int                  `json:"attempts"`
	Unrecorded   bool                 `json:"unrecorded,omitempty"`
	Result       *types.PaymentResult `json:"result,omitempty"`
	OpenedAt     time.Time            `json:"opened_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Open reports whether the modal is accepting card details.
func (s *Session) Open() bool {
	return s != nil && s.State == enums.PaymentStateModalOpen
}

// Completed reports whether the charge was approved and recorded.
func (s *Session) Completed() bool {
	return s != nil && (s.State == enums.PaymentStateSuccess || s.State == enums.PaymentStateConfirmation)
}

// Card is the raw card data typed into the modal. SourceID carries a
// tokenized card for gateways that never see raw numbers.
type Card struct {
	Number      string `json:"card_number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVV         string `json:"cvv"`
	SourceID    string `json:"source_id,omitempty"`
}

// Tokenized reports whether the card arrives as a gateway token only.
func (c Card) Tokenized() bool {
	return strings.TrimSpace(c.SourceID) != "" && strings.TrimSpace(c.Number) == ""
}

// Expiry renders the expiry as MM/YY.
func (c Card) Expiry() string {
	month := strings.TrimSpace(c.ExpiryMonth)
	if len(month) == 1 {
		month = "0" + month
	}
	year := strings.TrimSpace(c.ExpiryYear)
	if len(year) == 4 {
		year = year[2:]
	}
	return fmt.Sprintf("%s/%s", month, year)
}

// LastFour returns the last four digits of the card number.
func (c Card) LastFour() string {
	digits := validation.StripCardNumber(c.Number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// ChargeRequest is everything a gateway needs to charge a card once.
type ChargeRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Customer    types.CustomerInfo
	Billing     types.BillingInfo
	Card        Card
	Fields      map[string]string
}

// ChargeResult is the gateway's verdict. Declines are results, not errors.
type ChargeResult struct {
	Approved      bool
	Response      string
	Message       string
	TransactionID string
	CardToken     string
	ApprovalCode  string
}

type saveTransactionPayload struct {
	Action          string          `json:"action"`
	TransactionData transactionData `json:"transaction_data"`
}

type transactionData struct {
	QuoteID         string             `json:"quote_id"`
	OrderNumber     string             `json:"order_number"`
	QuoteType       string             `json:"quote_type,omitempty"`
	ProductName     string             `json:"product_name,omitempty"`
	Amount          decimal.Decimal    `json:"amount"`
	Currency        string             `json:"currency"`
	TransactionID   string             `json:"transaction_id"`
	ApprovalCode    string             `json:"approval_code,omitempty"`
	CardToken       string             `json:"card_token,omitempty"`
	ResponseMessage string             `json:"response_message,omitempty"`
	CardLastFour    string             `json:"card_last_four,omitempty"`
	PaymentMethod   string             `json:"payment_method"`
	Customer        types.CustomerInfo `json:"customer_info"`
	Billing         types.BillingInfo  `json:"billing_info"`
}

type saveTransactionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		TransactionNumber  string   `json:"transaction_number"`
		ConfirmationNumber string   `json:"confirmation_number"`
		Status             string   `json:"status"`
		NextSteps          []string `json:"next_steps"`
	} `json:"data"`
}
