package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// PaymentCreateParams encapsulates the inputs for a Square payment.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	ReferenceID    string
	Note           string
	BuyerEmail     string
	BillingAddress *BillingAddress
}

// BillingAddress is the subset of a Square address collected by the payment form.
type BillingAddress struct {
	Line1      string
	City       string
	State      string
	PostalCode string
	Country    string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(p.LocationID),
		SourceID:       p.SourceID,
		Autocomplete:   &autocomplete,
	}
	if p.AmountCents > 0 {
		req.AmountMoney = moneyPtr(p.AmountCents, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.BuyerEmail); trimmed != "" {
		req.BuyerEmailAddress = ptrString(trimmed)
	}
	if p.BillingAddress != nil {
		req.BillingAddress = p.BillingAddress.toSquare()
	}
	return req
}

func (a BillingAddress) toSquare() *sq.Address {
	return &sq.Address{
		AddressLine1:                 ptrString(strings.TrimSpace(a.Line1)),
		Locality:                     ptrString(strings.TrimSpace(a.City)),
		AdministrativeDistrictLevel1: ptrString(strings.TrimSpace(a.State)),
		PostalCode:                   ptrString(strings.TrimSpace(a.PostalCode)),
		Country:                      countryPtr(a.Country),
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func countryPtr(value string) *sq.Country {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		trimmed = "US"
	}
	c := sq.Country(trimmed)
	return &c
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
