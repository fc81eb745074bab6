package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/db/models"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

const (
	processPath      = "/api/payments/process"
	processEndpoint  = "payments_process"
	actionSaveTx     = "save_transaction"
	paymentMethod    = "credit_card"
	gatewayFailure   = "Payment processing failed. Please try again."
	unrecordedNotice = "Your payment was processed but we could not record it. Please contact support with your order number."
)

// ErrCancelled is returned when the customer closes the payment modal.
// Callers return to the quote view without an error banner.
var ErrCancelled = pkgerrors.New(pkgerrors.CodeCancelled, "Payment cancelled by user")

// Service runs the card collection lifecycle for a single quote.
type Service interface {
	Open(ctx context.Context, quote *types.Quote, customer types.CustomerInfo, billing types.BillingInfo) (*Session, error)
	Submit(ctx context.Context, auth backend.Session, sess *Session, card Card) (*types.PaymentResult, error)
	Cancel(ctx context.Context, sess *Session) error
	ProcessPayment(ctx context.Context, auth backend.Session, quote *types.Quote, customer types.CustomerInfo, billing types.BillingInfo, card Card) (*types.PaymentResult, error)
}

// BackendAPI is the subset of the backend client used to record transactions.
type BackendAPI interface {
	Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error)
}

type service struct {
	gateway  Gateway
	api      BackendAPI
	journal  Journal
	currency string
	logger   *logger.Logger
	metrics  *metrics.FlowMetrics
	now      func() time.Time
}

// NewService wires the payment orchestrator.
func NewService(gateway Gateway, api BackendAPI, journal Journal, currency string, logg *logger.Logger, m *metrics.FlowMetrics) (Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if api == nil {
		return nil, fmt.Errorf("backend client required")
	}
	if journal == nil {
		return nil, fmt.Errorf("charge journal required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return &service{
		gateway:  gateway,
		api:      api,
		journal:  journal,
		currency: currency,
		logger:   logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Open checks the customer and billing forms and opens a fresh modal for the
// quote. Nothing is sent anywhere when a required field is missing.
func (s *service) Open(ctx context.Context, quote *types.Quote, customer types.CustomerInfo, billing types.BillingInfo) (*Session, error) {
	if quote == nil || strings.TrimSpace(quote.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Generate a quote before paying")
	}

	missing := append(validation.ValidateCustomer(customer), validation.ValidateBilling(billing)...)
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please fill in all required customer and billing fields").
			WithDetails(map[string]any{"missing_fields": missing})
	}

	amount := quote.Amount()
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quote has no payable amount")
	}

	now := s.now().UTC()
	sess := &Session{
		ID:          uuid.NewString(),
		State:       enums.PaymentStateForm,
		QuoteID:     quote.ID,
		OrderNumber: quote.OrderNumber(),
		Amount:      amount,
		Currency:    s.currency,
		Customer:    customer,
		Billing:     billing,
		OpenedAt:    now,
		UpdatedAt:   now,
	}
	sess.HiddenFields = hiddenFields(sess)

	if err := s.fire(ctx, sess, EventSubmitInfo); err != nil {
		return nil, err
	}
	if err := s.fire(ctx, sess, EventProcess); err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"payment_id":   sess.ID,
		"order_number": sess.OrderNumber,
		"amount":       sess.Amount.StringFixed(2),
	}), "payment modal opened")
	return sess, nil
}

// Submit charges the card typed into an open modal. sess is updated in place.
// A decline leaves the modal open with the gateway message for a retry.
func (s *service) Submit(ctx context.Context, auth backend.Session, sess *Session, card Card) (*types.PaymentResult, error) {
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "No payment in progress")
	}
	if err := UnrecordedHold(sess); err != nil {
		return nil, err
	}
	if !sess.Open() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment is %s, not accepting card details", sess.State))
	}

	if msg := checkCard(card); msg != "" {
		sess.Message = msg
		s.metrics.IncPayment(metrics.OutcomeInvalid)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msg)
	}

	sess.Attempts++
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"payment_id":   sess.ID,
		"order_number": sess.OrderNumber,
		"attempt":      sess.Attempts,
	})

	result, err := s.gateway.Charge(ctx, ChargeRequest{
		OrderNumber: sess.OrderNumber,
		Amount:      sess.Amount,
		Currency:    sess.Currency,
		Customer:    sess.Customer,
		Billing:     sess.Billing,
		Card:        card,
		Fields:      sess.HiddenFields,
	})
	if err != nil {
		s.logger.Error(logCtx, "payment gateway call failed", err)
		s.metrics.IncPayment(metrics.OutcomeFailure)
		msg := gatewayFailure
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			msg = typed.Message()
		}
		if ferr := s.reopen(ctx, sess, msg); ferr != nil {
			return nil, ferr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}

	if !result.Approved {
		s.logger.Warn(s.logger.WithField(logCtx, "gateway_response", result.Response), "payment declined")
		s.metrics.IncPayment(metrics.OutcomeDeclined)
		if ferr := s.reopen(ctx, sess, result.Message); ferr != nil {
			return nil, ferr
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, result.Message).
			WithDetails(map[string]any{"response": result.Response, "attempts": sess.Attempts})
	}

	saved, err := s.saveTransaction(ctx, auth, sess, card, result)
	if err != nil {
		return nil, s.journalUnrecorded(logCtx, sess, result, err)
	}

	if err := s.fire(ctx, sess, EventApprove); err != nil {
		return nil, err
	}
	sess.Result = saved
	if err := s.fire(ctx, sess, EventConfirm); err != nil {
		return nil, err
	}

	s.metrics.IncPayment(metrics.OutcomeSuccess)
	s.logger.Info(s.logger.WithField(logCtx, "transaction_number", saved.TransactionNumber), "payment completed")
	return saved, nil
}

// Cancel closes the modal and always reports ErrCancelled. Completed payments
// cannot be cancelled, and neither can a charge that went through unrecorded.
func (s *service) Cancel(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrCancelled
	}
	if err := UnrecordedHold(sess); err != nil {
		return err
	}
	if sess.Completed() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "Payment already completed")
	}
	if sess.State != enums.PaymentStateForm {
		if err := s.fire(ctx, sess, EventCancel); err != nil {
			return err
		}
	}
	s.metrics.IncPayment(metrics.OutcomeCancelled)
	s.logger.Info(s.logger.WithField(ctx, "payment_id", sess.ID), "payment cancelled")
	return ErrCancelled
}

// ProcessPayment opens a modal and submits the card in one call.
func (s *service) ProcessPayment(ctx context.Context, auth backend.Session, quote *types.Quote, customer types.CustomerInfo, billing types.BillingInfo, card Card) (*types.PaymentResult, error) {
	sess, err := s.Open(ctx, quote, customer, billing)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, auth, sess, card)
}

// reopen records a failed attempt and puts the modal back in front of the customer.
func (s *service) reopen(ctx context.Context, sess *Session, msg string) error {
	if err := s.fire(ctx, sess, EventDecline, msg); err != nil {
		return err
	}
	return s.fire(ctx, sess, EventRetry)
}

func (s *service) saveTransaction(ctx context.Context, auth backend.Session, sess *Session, card Card, charge ChargeResult) (*types.PaymentResult, error) {
	payload := saveTransactionPayload{
		Action: actionSaveTx,
		TransactionData: transactionData{
			QuoteID:         sess.QuoteID,
			OrderNumber:     sess.OrderNumber,
			Amount:          sess.Amount,
			Currency:        sess.Currency,
			TransactionID:   charge.TransactionID,
			ApprovalCode:    charge.ApprovalCode,
			CardToken:       charge.CardToken,
			ResponseMessage: charge.Message,
			CardLastFour:    card.LastFour(),
			PaymentMethod:   paymentMethod,
			Customer:        sess.Customer,
			Billing:         sess.Billing,
		},
	}

	env, err := s.api.Post(ctx, auth, processEndpoint, processPath, payload)
	if err != nil {
		return nil, err
	}
	var resp saveTransactionResponse
	if err := env.Decode(&resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := env.FailureMessage()
		if msg == "" {
			msg = "transaction was not saved"
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg)
	}

	result := &types.PaymentResult{
		Success:            true,
		TransactionNumber:  firstNonEmpty(resp.Data.TransactionNumber, charge.TransactionID),
		ConfirmationNumber: firstNonEmpty(resp.Data.ConfirmationNumber, sess.OrderNumber),
		Amount:             sess.Amount,
		Status:             firstNonEmpty(resp.Data.Status, "completed"),
		NextSteps:          resp.Data.NextSteps,
	}
	if len(result.NextSteps) == 0 {
		result.NextSteps = defaultNextSteps(sess.Customer)
	}
	return result, nil
}

// UnrecordedHold refuses any further action on a session whose charge went
// through but was never recorded. Only starting over leaves it.
func UnrecordedHold(sess *Session) error {
	if sess == nil || !sess.Unrecorded {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePaymentUnrecorded, unrecordedNotice).
		WithDetails(map[string]any{"order_number": sess.OrderNumber})
}

// journalUnrecorded handles a charge that went through but could not be
// saved upstream. The modal is parked in failed and held there by
// UnrecordedHold so the card is not charged again.
func (s *service) journalUnrecorded(ctx context.Context, sess *Session, charge ChargeResult, cause error) error {
	s.metrics.IncPayment(metrics.OutcomeUnrecorded)
	s.metrics.IncUnrecorded()
	s.logger.Error(s.logger.WithField(ctx, "gateway_transaction_id", charge.TransactionID), "approved charge was not recorded", cause)

	payload, _ := json.Marshal(map[string]any{
		"response":         charge.Response,
		"response_message": charge.Message,
		"card_token":       charge.CardToken,
	})
	row := &models.UnrecordedCharge{
		QuoteID:              sess.QuoteID,
		OrderNumber:          sess.OrderNumber,
		GatewayTransactionID: charge.TransactionID,
		ApprovalCode:         charge.ApprovalCode,
		AmountCents:          toCents(sess.Amount),
		Currency:             sess.Currency,
		Customer:             sess.Customer,
		FailureReason:        cause.Error(),
		Payload:              payload,
	}
	if flowID, ok := ctx.Value(flowIDKey{}).(string); ok {
		row.FlowID = flowID
	}
	if err := s.journal.RecordUnrecorded(ctx, row); err != nil {
		s.logger.Error(ctx, "failed to journal unrecorded charge", err)
	}

	sess.Unrecorded = true
	if err := s.fire(ctx, sess, EventDecline, unrecordedNotice); err != nil {
		s.logger.Error(ctx, "failed to park unrecorded payment", err)
	}

	return pkgerrors.Wrap(pkgerrors.CodePaymentUnrecorded, cause, unrecordedNotice).
		WithDetails(map[string]any{
			"order_number":   sess.OrderNumber,
			"transaction_id": charge.TransactionID,
		})
}

type flowIDKey struct{}

// WithFlowID tags ctx so journal rows can be traced back to their flow.
func WithFlowID(ctx context.Context, flowID string) context.Context {
	return context.WithValue(ctx, flowIDKey{}, flowID)
}

// checkCard repeats the modal's own field checks: presence, 13 to 19 digits
// and a 3 or 4 digit CVV.
func checkCard(card Card) string {
	if card.Tokenized() {
		return ""
	}
	number := validation.StripCardNumber(card.Number)
	cvv := strings.TrimSpace(card.CVV)
	if number == "" || cvv == "" || strings.TrimSpace(card.ExpiryMonth) == "" || strings.TrimSpace(card.ExpiryYear) == "" {
		return "Please fill in all card fields"
	}
	if len(number) < 13 || len(number) > 19 || !allDigits(number) {
		return "Card number must be between 13 and 19 digits"
	}
	if len(cvv) < 3 || len(cvv) > 4 || !allDigits(cvv) {
		return "CVV must be 3 or 4 digits"
	}
	return ""
}

func hiddenFields(sess *Session) map[string]string {
	return map[string]string{
		FieldAmount:           sess.Amount.StringFixed(2),
		FieldCurrency:         sess.Currency,
		FieldOrderNumber:      sess.OrderNumber,
		FieldBillingFirstName: strings.TrimSpace(sess.Customer.FirstName),
		FieldBillingLastName:  strings.TrimSpace(sess.Customer.LastName),
		FieldBillingEmail:     strings.TrimSpace(sess.Customer.Email),
		FieldBillingAddress:   strings.TrimSpace(sess.Billing.Address),
		FieldBillingCity:      strings.TrimSpace(sess.Billing.City),
		FieldBillingState:     strings.TrimSpace(sess.Billing.State),
		FieldBillingZip:       strings.TrimSpace(sess.Billing.ZipCode),
		FieldBillingCountry:   sess.Billing.CountryOrDefault(),
	}
}

func defaultNextSteps(customer types.CustomerInfo) []string {
	return []string{
		fmt.Sprintf("A confirmation email will be sent to %s", strings.TrimSpace(customer.Email)),
		"Your coverage documents will be available within 24 hours",
		"Keep your confirmation number for your records",
	}
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func allDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
