package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/quoteflow/internal/products"
	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

const (
	heroPath     = "/api/hero/quote"
	vscPath      = "/api/vsc/quote"
	heroEndpoint = "hero_quote"
	vscEndpoint  = "vsc_quote"

	// shown for any network or non-2xx failure
	genericFailure = "Failed to generate quote. Please try again."
)

// Service prices Hero and VSC quote forms.
type Service interface {
	GenerateHero(ctx context.Context, session backend.Session, form types.HeroQuoteRequest) (*types.Quote, error)
	GenerateVSC(ctx context.Context, session backend.Session, form types.VSCQuoteRequest, eligibility *types.Eligibility) (*types.Quote, error)
}

// BackendAPI is the subset of the backend client the quote engine needs.
type BackendAPI interface {
	Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error)
}

type service struct {
	api     BackendAPI
	logger  *logger.Logger
	metrics *metrics.FlowMetrics
	now     func() time.Time
}

// NewService builds the quote engine client.
func NewService(api BackendAPI, logg *logger.Logger, m *metrics.FlowMetrics) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("backend client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, logger: logg, metrics: m, now: time.Now}, nil
}

func (s *service) GenerateHero(ctx context.Context, session backend.Session, form types.HeroQuoteRequest) (*types.Quote, error) {
	// product codes may embed the coverage limit, e.g. home_protection_500
	if base, limit := products.SplitCoverageSuffix(form.ProductType); limit > 0 {
		form.ProductType = base
		form.CoverageLimit = limit
	}

	req := types.NewHeroRequest(form)
	if errs := validation.ValidateQuoteDataAt(req, s.now()); len(errs) > 0 {
		s.metrics.IncQuote(enums.QuoteKindHero.String(), metrics.OutcomeInvalid)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, validation.JoinMessages(errs)).WithDetails(errs)
	}

	payload := heroPayload{
		ProductType:   strings.TrimSpace(form.ProductType),
		TermYears:     form.TermYears,
		CoverageLimit: form.CoverageLimit,
		CustomerType:  form.CustomerType,
	}

	quote, err := s.submit(ctx, session, enums.QuoteKindHero, heroEndpoint, heroPath, payload)
	if err != nil {
		return nil, err
	}
	quote.ProductType = payload.ProductType
	quote.TermYears = form.TermYears
	quote.CoverageLimit = form.CoverageLimit
	quote.Request = req
	return quote, nil
}

func (s *service) GenerateVSC(ctx context.Context, session backend.Session, form types.VSCQuoteRequest, eligibility *types.Eligibility) (*types.Quote, error) {
	req := types.NewVSCRequest(form)
	if errs := validation.ValidateQuoteDataAt(req, s.now()); len(errs) > 0 {
		s.metrics.IncQuote(enums.QuoteKindVSC.String(), metrics.OutcomeInvalid)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, validation.JoinMessages(errs)).WithDetails(errs)
	}
	if eligibility != nil && !eligibility.Eligible {
		s.metrics.IncQuote(enums.QuoteKindVSC.String(), metrics.OutcomeIneligible)
		msg := "Vehicle is not eligible for coverage: " + strings.Join(eligibility.Restrictions, ", ")
		return nil, pkgerrors.New(pkgerrors.CodeIneligible, msg).WithDetails(map[string]any{
			"restrictions": eligibility.Restrictions,
			"warnings":     eligibility.Warnings,
		})
	}

	coverageLevel, _ := products.SplitCoverageSuffix(form.CoverageLevel)
	payload := vscPayload{
		VIN:           validation.NormalizeVIN(form.VIN),
		Make:          strings.TrimSpace(form.Make),
		Model:         strings.TrimSpace(form.Model),
		Year:          form.Year,
		Mileage:       form.Mileage,
		CoverageLevel: coverageLevel,
		TermMonths:    form.TermMonths,
		CustomerType:  form.CustomerType,
	}

	quote, err := s.submit(ctx, session, enums.QuoteKindVSC, vscEndpoint, vscPath, payload)
	if err != nil {
		return nil, err
	}
	quote.TermMonths = form.TermMonths
	if quote.CoverageLevel == "" {
		quote.CoverageLevel = coverageLevel
	}
	form.VIN = payload.VIN
	form.CoverageLevel = coverageLevel
	quote.Request = types.NewVSCRequest(form)
	return quote, nil
}

func (s *service) submit(ctx context.Context, session backend.Session, kind enums.QuoteKind, endpoint, path string, payload any) (*types.Quote, error) {
	env, err := s.api.Post(ctx, session, endpoint, path, payload)
	if err != nil {
		s.metrics.IncQuote(kind.String(), metrics.OutcomeFailure)
		s.logger.Error(s.logger.WithField(ctx, "kind", kind.String()), "quote request failed", err)
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeQuoteFailed, err, genericFailure)
	}

	var resp quoteResponse
	if err := env.Decode(&resp); err != nil {
		s.metrics.IncQuote(kind.String(), metrics.OutcomeFailure)
		return nil, pkgerrors.Wrap(pkgerrors.CodeQuoteFailed, err, genericFailure)
	}
	if !resp.Success {
		s.metrics.IncQuote(kind.String(), metrics.OutcomeFailure)
		msg := env.FailureMessage()
		if msg == "" {
			msg = genericFailure
		}
		// the backend's own error text is user-facing
		return nil, pkgerrors.New(pkgerrors.CodeQuoteFailed, msg).WithDetails(map[string]any{"backend_error": msg})
	}

	id := strings.TrimSpace(resp.QuoteID)
	if id == "" {
		id = strings.TrimSpace(resp.ID)
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.metrics.IncQuote(kind.String(), metrics.OutcomeSuccess)
	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"kind":     kind.String(),
		"quote_id": id,
		"total":    resp.Pricing.TotalPrice.String(),
	}), "quote generated")

	return &types.Quote{
		ID:            id,
		Kind:          kind,
		ProductName:   resp.ProductName,
		CoverageLevel: resp.CoverageLevel,
		Pricing:       resp.Pricing,
		Raw:           append([]byte(nil), env.Body...),
	}, nil
}
