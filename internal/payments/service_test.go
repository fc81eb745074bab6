package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/db/models"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

type stubGateway struct {
	results  []ChargeResult
	err      error
	requests []ChargeRequest
}

func (g *stubGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return ChargeResult{}, g.err
	}
	if len(g.results) == 0 {
		return ChargeResult{Approved: true, Response: "1", TransactionID: "tx-1"}, nil
	}
	next := g.results[0]
	g.results = g.results[1:]
	return next, nil
}

type stubAPI struct {
	response string
	err      error
	calls    int
	payload  map[string]any
}

func (a *stubAPI) Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error) {
	a.calls++
	raw, _ := json.Marshal(body)
	a.payload = map[string]any{}
	_ = json.Unmarshal(raw, &a.payload)
	if a.err != nil {
		return nil, a.err
	}
	return backend.Normalize([]byte(a.response), 200)
}

type memoryJournal struct {
	rows []models.UnrecordedCharge
}

func (j *memoryJournal) RecordUnrecorded(ctx context.Context, charge *models.UnrecordedCharge) error {
	j.rows = append(j.rows, *charge)
	return nil
}

func (j *memoryJournal) ListOpen(ctx context.Context, limit int) ([]models.UnrecordedCharge, error) {
	return j.rows, nil
}

func (j *memoryJournal) CountOpen(ctx context.Context) (int64, error) {
	return int64(len(j.rows)), nil
}

func (j *memoryJournal) Resolve(ctx context.Context, id uuid.UUID) error {
	return nil
}

func newTestService(t *testing.T, gw Gateway, api BackendAPI, journal Journal) *service {
	t.Helper()
	svc, err := NewService(gw, api, journal, "usd", logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard}), nil)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return impl
}

func testQuote() *types.Quote {
	return &types.Quote{
		ID:      "q-42",
		Kind:    enums.QuoteKindHero,
		Pricing: types.PricingBreakdown{TotalPrice: decimal.RequireFromString("199.99")},
	}
}

func testCustomer() types.CustomerInfo {
	return types.CustomerInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
}

func testBilling() types.BillingInfo {
	return types.BillingInfo{Address: "1 Main St", City: "Tulsa", State: "OK", ZipCode: "74103"}
}

func testCard() Card {
	return Card{Number: "4111 1111 1111 1111", ExpiryMonth: "4", ExpiryYear: "2028", CVV: "123"}
}

func TestOpenRequiresCustomerAndBilling(t *testing.T) {
	gw := &stubGateway{}
	api := &stubAPI{}
	svc := newTestService(t, gw, api, &memoryJournal{})

	_, err := svc.Open(context.Background(), testQuote(), types.CustomerInfo{FirstName: "Ada"}, types.BillingInfo{City: "Tulsa"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"last_name", "email", "address", "state", "zip_code"}, details["missing_fields"])
	assert.Empty(t, gw.requests)
	assert.Zero(t, api.calls)
}

func TestOpenBuildsHiddenForm(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, &stubAPI{}, &memoryJournal{})

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentStateModalOpen, sess.State)
	assert.Equal(t, "ORD-q-42", sess.OrderNumber)
	assert.Equal(t, "USD", sess.Currency)
	assert.Equal(t, "199.99", sess.HiddenFields[FieldAmount])
	assert.Equal(t, "ORD-q-42", sess.HiddenFields[FieldOrderNumber])
	assert.Equal(t, "74103", sess.HiddenFields[FieldBillingZip])
	assert.Equal(t, "US", sess.HiddenFields[FieldBillingCountry])
	assert.NotContains(t, sess.HiddenFields, FieldToken)
}

func TestOpenWithoutQuote(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, &stubAPI{}, &memoryJournal{})
	_, err := svc.Open(context.Background(), nil, testCustomer(), testBilling())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestSubmitInlineCardChecks(t *testing.T) {
	cases := []struct {
		name string
		card Card
		msg  string
	}{
		{"missing cvv", Card{Number: "4111111111111111", ExpiryMonth: "4", ExpiryYear: "28"}, "Please fill in all card fields"},
		{"short number", Card{Number: "4111 1111", ExpiryMonth: "4", ExpiryYear: "28", CVV: "123"}, "Card number must be between 13 and 19 digits"},
		{"long cvv", Card{Number: "4111111111111111", ExpiryMonth: "4", ExpiryYear: "28", CVV: "12345"}, "CVV must be 3 or 4 digits"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &stubGateway{}
			svc := newTestService(t, gw, &stubAPI{}, &memoryJournal{})
			sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
			require.NoError(t, err)

			_, err = svc.Submit(context.Background(), backend.Session{}, sess, tc.card)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
			assert.Equal(t, tc.msg, sess.Message)
			assert.Equal(t, enums.PaymentStateModalOpen, sess.State)
			assert.Empty(t, gw.requests)
		})
	}
}

func TestSubmitApprovedSavesBeforeSuccess(t *testing.T) {
	gw := &stubGateway{results: []ChargeResult{{Approved: true, Response: "1", TransactionID: "tx-9", ApprovalCode: "A1"}}}
	api := &stubAPI{response: `{"success":true,"data":{"transaction_number":"TXN-100","confirmation_number":"CONF-7"}}`}
	svc := newTestService(t, gw, api, &memoryJournal{})

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)

	result, err := svc.Submit(context.Background(), backend.Session{Token: "tok"}, sess, testCard())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "TXN-100", result.TransactionNumber)
	assert.Equal(t, "CONF-7", result.ConfirmationNumber)
	assert.Equal(t, "completed", result.Status)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("199.99")))
	assert.NotEmpty(t, result.NextSteps)
	assert.Equal(t, enums.PaymentStateConfirmation, sess.State)
	assert.Same(t, result, sess.Result)

	assert.Equal(t, 1, api.calls)
	assert.Equal(t, "save_transaction", api.payload["action"])
	data := api.payload["transaction_data"].(map[string]any)
	assert.Equal(t, "tx-9", data["transaction_id"])
	assert.Equal(t, "1111", data["card_last_four"])
	assert.NotContains(t, data, "card_number")

	require.Len(t, gw.requests, 1)
	assert.Equal(t, "ORD-q-42", gw.requests[0].OrderNumber)
}

func TestSubmitDeclineKeepsModalOpenForRetry(t *testing.T) {
	gw := &stubGateway{results: []ChargeResult{
		{Approved: false, Response: "2", Message: "Insufficient funds"},
		{Approved: true, Response: "1", TransactionID: "tx-2"},
	}}
	api := &stubAPI{response: `{"success":true,"data":{}}`}
	svc := newTestService(t, gw, api, &memoryJournal{})

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), backend.Session{}, sess, testCard())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentDeclined))
	assert.Equal(t, "Insufficient funds", sess.Message)
	assert.Equal(t, enums.PaymentStateModalOpen, sess.State)
	assert.Zero(t, api.calls)

	result, err := svc.Submit(context.Background(), backend.Session{}, sess, testCard())
	require.NoError(t, err)
	assert.Equal(t, "tx-2", result.TransactionNumber)
	assert.Equal(t, "ORD-q-42", result.ConfirmationNumber)
	assert.Equal(t, 2, sess.Attempts)
	assert.Empty(t, sess.Message)
}

func TestSubmitGatewayErrorAllowsRetry(t *testing.T) {
	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")}
	svc := newTestService(t, gw, &stubAPI{}, &memoryJournal{})

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), backend.Session{}, sess, testCard())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, gatewayFailure, sess.Message)
	assert.True(t, sess.Open())
}

func TestSubmitUnrecordedChargeIsJournaled(t *testing.T) {
	gw := &stubGateway{results: []ChargeResult{{Approved: true, Response: "1", TransactionID: "tx-5", ApprovalCode: "OK5"}}}
	api := &stubAPI{err: errors.New("connection reset")}
	journal := &memoryJournal{}
	svc := newTestService(t, gw, api, journal)

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)

	ctx := WithFlowID(context.Background(), "flow-1")
	_, err = svc.Submit(ctx, backend.Session{}, sess, testCard())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))

	require.Len(t, journal.rows, 1)
	row := journal.rows[0]
	assert.Equal(t, "flow-1", row.FlowID)
	assert.Equal(t, "tx-5", row.GatewayTransactionID)
	assert.Equal(t, int64(19999), row.AmountCents)
	assert.Equal(t, "connection reset", row.FailureReason)

	assert.True(t, sess.Unrecorded)
	assert.Equal(t, enums.PaymentStateFailed, sess.State)

	// a second submit must not charge the card again
	_, err = svc.Submit(ctx, backend.Session{}, sess, testCard())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))
	assert.Len(t, gw.requests, 1)
}

func TestCancelUnrecordedSessionIsRefused(t *testing.T) {
	gw := &stubGateway{results: []ChargeResult{{Approved: true, Response: "1", TransactionID: "tx-6"}}}
	svc := newTestService(t, gw, &stubAPI{err: errors.New("connection reset")}, &memoryJournal{})

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), backend.Session{}, sess, testCard())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))

	err = svc.Cancel(context.Background(), sess)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Equal(t, enums.PaymentStateFailed, sess.State)
	assert.True(t, sess.Unrecorded)

	_, err = svc.Submit(context.Background(), backend.Session{}, sess, testCard())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))
	assert.Len(t, gw.requests, 1)
}

func TestUnrecordedHold(t *testing.T) {
	assert.NoError(t, UnrecordedHold(nil))
	assert.NoError(t, UnrecordedHold(&Session{State: enums.PaymentStateModalOpen}))

	err := UnrecordedHold(&Session{State: enums.PaymentStateFailed, OrderNumber: "ORD-7", Unrecorded: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))
	assert.Contains(t, err.Error(), "contact support")
}

func TestSubmitBackendRejectsTransaction(t *testing.T) {
	api := &stubAPI{response: `{"success":false,"error":"duplicate order"}`}
	journal := &memoryJournal{}
	svc := newTestService(t, &stubGateway{}, api, journal)

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), backend.Session{}, sess, testCard())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))
	require.Len(t, journal.rows, 1)
	assert.Contains(t, journal.rows[0].FailureReason, "duplicate order")
}

func TestCancelReturnsErrCancelled(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, &stubAPI{}, &memoryJournal{})

	sess, err := svc.Open(context.Background(), testQuote(), testCustomer(), testBilling())
	require.NoError(t, err)
	sess.Message = "Insufficient funds"

	err = svc.Cancel(context.Background(), sess)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCancelled))
	assert.Equal(t, enums.PaymentStateForm, sess.State)
	assert.Empty(t, sess.Message)

	// cancelling again is harmless
	assert.ErrorIs(t, svc.Cancel(context.Background(), sess), ErrCancelled)
}

func TestCancelCompletedPaymentConflicts(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, &stubAPI{response: `{"success":true}`}, &memoryJournal{})

	result, err := svc.ProcessPayment(context.Background(), backend.Session{}, testQuote(), testCustomer(), testBilling(), testCard())
	require.NoError(t, err)
	require.True(t, result.Success)

	sess := &Session{State: enums.PaymentStateConfirmation}
	assert.True(t, pkgerrors.IsCode(svc.Cancel(context.Background(), sess), pkgerrors.CodeStateConflict))
}

func TestProcessPaymentStopsAtPrecondition(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw, &stubAPI{}, &memoryJournal{})

	_, err := svc.ProcessPayment(context.Background(), backend.Session{}, testQuote(), types.CustomerInfo{}, testBilling(), testCard())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, gw.requests)
}
