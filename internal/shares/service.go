package shares

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

const (
	generatePath     = "/api/resellers/quotes/generate"
	sendEmailPath    = "/api/resellers/quotes/send-email"
	generateEndpoint = "reseller_generate"
	emailEndpoint    = "reseller_send_email"
)

// Service turns reseller quotes into shareable links and emails them.
type Service interface {
	CreateShareable(ctx context.Context, session backend.Session, quote types.Quote, customer types.CustomerInfo, notes string) (*types.ShareableQuote, error)
	SendByEmail(ctx context.Context, session backend.Session, share types.ShareableQuote, customer types.CustomerInfo, notes string) error
}

// BackendAPI is the subset of the backend client the share workflow needs.
type BackendAPI interface {
	Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error)
}

type service struct {
	api     BackendAPI
	logger  *logger.Logger
	metrics *metrics.FlowMetrics
}

// NewService builds the reseller share workflow.
func NewService(api BackendAPI, logg *logger.Logger, m *metrics.FlowMetrics) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("backend client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, logger: logg, metrics: m}, nil
}

// CreateShareable persists the quote for a customer and returns its public link.
// Customer fields are checked before any request is made.
func (s *service) CreateShareable(ctx context.Context, session backend.Session, quote types.Quote, customer types.CustomerInfo, notes string) (*types.ShareableQuote, error) {
	if missing := validation.ValidateCustomer(customer); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Customer first name, last name and email are required to share a quote").
			WithDetails(map[string]any{"missing_fields": missing})
	}

	payload := generatePayload{
		QuoteType:       quote.Kind,
		QuoteData:       quoteData(quote.Request),
		Pricing:         quote.Pricing,
		CustomerInfo:    trimCustomer(customer),
		Notes:           strings.TrimSpace(notes),
		CreateShareable: true,
	}

	env, err := s.api.Post(ctx, session, generateEndpoint, generatePath, payload)
	if err != nil {
		s.metrics.IncShare("create", metrics.OutcomeFailure)
		return nil, passThroughOr(err, "Failed to create shareable quote")
	}
	var resp generateResponse
	if err := env.Decode(&resp); err != nil {
		s.metrics.IncShare("create", metrics.OutcomeFailure)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to create shareable quote")
	}
	if !resp.Success || strings.TrimSpace(resp.Sharing.ShareURL) == "" {
		s.metrics.IncShare("create", metrics.OutcomeFailure)
		msg := env.FailureMessage()
		if msg == "" {
			msg = "Failed to create shareable quote"
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg)
	}

	quoteID := strings.TrimSpace(resp.QuoteID)
	if quoteID == "" {
		quoteID = quote.ID
	}

	s.metrics.IncShare("create", metrics.OutcomeSuccess)
	s.logger.Info(s.logger.WithField(ctx, "quote_id", quoteID), "shareable quote created")

	return &types.ShareableQuote{
		QuoteID:        quoteID,
		ShareURL:       strings.TrimSpace(resp.Sharing.ShareURL),
		CommissionRate: resp.ResellerInfo.CommissionRate,
		Customer:       trimCustomer(customer),
		Notes:          strings.TrimSpace(notes),
		Quote:          quote,
	}, nil
}

// SendByEmail asks the backend to email the share link. No idempotency key is
// sent; callers serialize duplicate clicks themselves.
func (s *service) SendByEmail(ctx context.Context, session backend.Session, share types.ShareableQuote, customer types.CustomerInfo, notes string) error {
	if strings.TrimSpace(share.QuoteID) == "" || strings.TrimSpace(share.ShareURL) == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "create a shareable quote before emailing it")
	}
	if strings.TrimSpace(customer.Email) == "" {
		customer = share.Customer
	}
	if strings.TrimSpace(customer.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Customer email is required").
			WithDetails(map[string]any{"missing_fields": []string{"email"}})
	}

	payload := emailPayload{
		QuoteID:       share.QuoteID,
		CustomerEmail: strings.TrimSpace(customer.Email),
		CustomerName:  customer.FullName(),
		ShareURL:      share.ShareURL,
		Notes:         strings.TrimSpace(notes),
	}

	env, err := s.api.Post(ctx, session, emailEndpoint, sendEmailPath, payload)
	if err != nil {
		s.metrics.IncShare("email", metrics.OutcomeFailure)
		return passThroughOr(err, "Failed to send quote email")
	}
	var resp emailResponse
	if err := env.Decode(&resp); err != nil || !env.OK() {
		s.metrics.IncShare("email", metrics.OutcomeFailure)
		msg := env.FailureMessage()
		if msg == "" {
			msg = "Failed to send quote email"
		}
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	}

	s.metrics.IncShare("email", metrics.OutcomeSuccess)
	s.logger.Info(s.logger.WithField(ctx, "quote_id", share.QuoteID), "share email sent")
	return nil
}

func quoteData(req types.QuoteRequest) any {
	switch {
	case req.Hero != nil:
		return req.Hero
	case req.VSC != nil:
		return req.VSC
	default:
		return nil
	}
}

func trimCustomer(c types.CustomerInfo) types.CustomerInfo {
	return types.CustomerInfo{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
	}
}

// passThroughOr keeps auth failures intact so callers can re-authenticate.
func passThroughOr(err error, msg string) error {
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
