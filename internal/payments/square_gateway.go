package payments

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/square"
)

// PaymentCreator is the slice of the Square client the gateway uses.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	NewIdempotencyKey(prefix string) string
}

// SquareGateway charges tokenized card sources through Square Payments.
type SquareGateway struct {
	client PaymentCreator
	logger *logger.Logger
}

// NewSquareGateway wraps a Square client.
func NewSquareGateway(client PaymentCreator, logg *logger.Logger) (*SquareGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &SquareGateway{client: client, logger: logg}, nil
}

// Charge creates an autocompleted Square payment for the card source.
func (g *SquareGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	sourceID := strings.TrimSpace(req.Card.SourceID)
	if sourceID == "" {
		return ChargeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "square payments require a tokenized card source")
	}

	params := square.PaymentCreateParams{
		AmountCents:    toCents(req.Amount),
		Currency:       req.Currency,
		SourceID:       sourceID,
		IdempotencyKey: g.client.NewIdempotencyKey("charge"),
		ReferenceID:    req.OrderNumber,
		Note:           "Quote " + req.OrderNumber,
		BuyerEmail:     req.Customer.Email,
		BillingAddress: &square.BillingAddress{
			Line1:      req.Billing.Address,
			City:       req.Billing.City,
			State:      req.Billing.State,
			PostalCode: req.Billing.ZipCode,
			Country:    req.Billing.CountryOrDefault(),
		},
	}

	payment, err := g.client.CreatePayment(ctx, params)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodePaymentDeclined) {
			msg := square.DeclineMessage(err)
			if msg == "" {
				msg = defaultDecline
			}
			return ChargeResult{Approved: false, Response: "declined", Message: msg}, nil
		}
		return ChargeResult{}, err
	}

	status := strings.ToUpper(derefString(payment.GetStatus()))
	result := ChargeResult{
		Response:      strings.ToLower(status),
		TransactionID: derefString(payment.GetID()),
		CardToken:     sourceID,
	}
	switch status {
	case "COMPLETED", "APPROVED":
		result.Approved = true
	default:
		result.Message = defaultDecline
	}
	return result, nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
