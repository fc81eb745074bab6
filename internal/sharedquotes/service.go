package sharedquotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

// Service loads and accepts quotes opened through a public share link.
type Service interface {
	Load(ctx context.Context, token string) (*SharedQuote, error)
	Accept(ctx context.Context, token string, customer types.CustomerInfo) (*AcceptResult, error)
}

// BackendAPI is the subset of the backend client used for shared quotes.
type BackendAPI interface {
	Get(ctx context.Context, session backend.Session, endpoint, path string) (*backend.Envelope, error)
	Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error)
}

type service struct {
	api    BackendAPI
	logger *logger.Logger
}

// NewService builds the shared quote service.
func NewService(api BackendAPI, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("backend client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, logger: logg}, nil
}

// Load fetches a shared quote. Public links carry no bearer token.
func (s *service) Load(ctx context.Context, token string) (*SharedQuote, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "share token is required")
	}

	env, err := s.api.Get(ctx, backend.Session{}, "shared_quote", "/quote/shared/"+url.PathEscape(token))
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "shared quote not found or expired")
		}
		return nil, err
	}

	var resp loadResponse
	if err := env.Decode(&resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shared quote")
	}
	if !env.OK() || len(resp.Quote) == 0 {
		msg := env.FailureMessage()
		if msg == "" {
			msg = "shared quote not found or expired"
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}

	quote, err := toQuote(resp.Quote)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shared quote")
	}

	s.logger.Info(s.logger.WithField(ctx, "quote_id", quote.ID), "shared quote loaded")
	return &SharedQuote{
		Token:     token,
		Quote:     *quote,
		Customer:  resp.CustomerInfo,
		Reseller:  resp.ResellerInfo,
		Status:    resp.Status,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// Accept records the customer's acceptance of a shared quote.
func (s *service) Accept(ctx context.Context, token string, customer types.CustomerInfo) (*AcceptResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "share token is required")
	}
	if missing := validation.ValidateCustomer(customer); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer information is incomplete").
			WithDetails(map[string]any{"missing_fields": missing})
	}

	env, err := s.api.Post(ctx, backend.Session{}, "shared_quote_accept", "/quote/"+url.PathEscape(token)+"/accept", acceptPayload{CustomerInfo: customer})
	if err != nil {
		return nil, err
	}
	var resp acceptResponse
	if err := env.Decode(&resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode accept response")
	}
	if !env.OK() {
		msg := env.FailureMessage()
		if msg == "" {
			msg = "failed to accept quote"
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, msg)
	}

	s.logger.Info(s.logger.WithField(ctx, "quote_id", resp.QuoteID), "shared quote accepted")
	return &AcceptResult{Accepted: true, QuoteID: resp.QuoteID, Message: resp.Message}, nil
}

func toQuote(raw json.RawMessage) (*types.Quote, error) {
	var p sharedQuotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	kind, err := enums.ParseQuoteKind(strings.ToLower(strings.TrimSpace(p.QuoteType)))
	if err != nil {
		kind = enums.QuoteKindHero
		if p.TermMonths > 0 || p.CoverageLevel != "" {
			kind = enums.QuoteKindVSC
		}
	}

	quote := &types.Quote{
		ID:            strings.TrimSpace(p.QuoteID),
		Kind:          kind,
		ProductType:   p.ProductType,
		ProductName:   p.ProductName,
		TermYears:     p.TermYears,
		TermMonths:    p.TermMonths,
		CoverageLimit: p.CoverageLimit,
		CoverageLevel: p.CoverageLevel,
		Pricing:       p.Pricing,
		Raw:           append(json.RawMessage(nil), raw...),
	}
	// shared links are always opened by the end customer
	switch kind {
	case enums.QuoteKindVSC:
		quote.Request = types.NewVSCRequest(types.VSCQuoteRequest{
			CoverageLevel: p.CoverageLevel, TermMonths: p.TermMonths, CustomerType: enums.CustomerTypeRetail,
		})
	default:
		quote.Request = types.NewHeroRequest(types.HeroQuoteRequest{
			ProductType: p.ProductType, TermYears: p.TermYears, CoverageLimit: p.CoverageLimit, CustomerType: enums.CustomerTypeRetail,
		})
	}
	return quote, nil
}
