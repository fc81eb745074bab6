package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/quoteflow/api/middleware"
	"github.com/angelmondragon/quoteflow/api/responses"
	"github.com/angelmondragon/quoteflow/api/validators"
	"github.com/angelmondragon/quoteflow/internal/flow"
	"github.com/angelmondragon/quoteflow/internal/payments"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

const maxNotesLength = 2000

type vehicleRequest struct {
	VIN     *string `json:"vin"`
	Mileage *int    `json:"mileage" validate:"omitempty,gte=0"`
	Make    string  `json:"make"`
	Model   string  `json:"model"`
	Year    int     `json:"year" validate:"omitempty,gte=1900"`
}

type heroQuoteRequest struct {
	ProductType   string `json:"product_type"`
	TermYears     int    `json:"term_years"`
	CoverageLimit int    `json:"coverage_limit"`
}

type vscQuoteRequest struct {
	VIN           string `json:"vin"`
	Make          string `json:"make"`
	Model         string `json:"model"`
	Year          int    `json:"year"`
	Mileage       int    `json:"mileage"`
	CoverageLevel string `json:"coverage_level"`
	TermMonths    int    `json:"term_months"`
}

type openPaymentRequest struct {
	Customer types.CustomerInfo `json:"customer"`
	Billing  types.BillingInfo  `json:"billing"`
}

type shareRequest struct {
	Customer types.CustomerInfo `json:"customer"`
	Notes    string             `json:"notes"`
}

type emailShareRequest struct {
	Customer *types.CustomerInfo `json:"customer,omitempty"`
	Notes    string              `json:"notes"`
}

// CreateFlow opens a quote page for the signed-in actor.
func CreateFlow(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flow service unavailable"))
			return
		}
		page, err := svc.Start(r.Context(), actorFromRequest(r))
		writePage(r.Context(), logg, w, http.StatusCreated, page, err)
	}
}

func GetFlow(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		page, err := svc.Get(ctx, actorFromRequest(r), id)
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

// ResetFlow drops the quote, payment and share so the user can start over.
func ResetFlow(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		page, err := svc.Reset(ctx, actorFromRequest(r), id)
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

// UpdateVehicle applies a VSC vehicle edit. A VIN change triggers a debounced
// decode; a failed decode still returns the page so manual entry can proceed.
func UpdateVehicle(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		var body vehicleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.UpdateVehicle(ctx, actorFromRequest(r), id, flow.VehicleUpdate{
			VIN:     body.VIN,
			Mileage: body.Mileage,
			Make:    strings.TrimSpace(body.Make),
			Model:   strings.TrimSpace(body.Model),
			Year:    body.Year,
		})
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

// SubmitHeroQuote prices a hero product. The customer type comes from the page, never the body.
func SubmitHeroQuote(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		var body heroQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.SubmitHero(ctx, actorFromRequest(r), id, types.HeroQuoteRequest{
			ProductType:   strings.TrimSpace(body.ProductType),
			TermYears:     body.TermYears,
			CoverageLimit: body.CoverageLimit,
		})
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

func SubmitVSCQuote(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		var body vscQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.SubmitVSC(ctx, actorFromRequest(r), id, types.VSCQuoteRequest{
			VIN:           strings.TrimSpace(body.VIN),
			Make:          strings.TrimSpace(body.Make),
			Model:         strings.TrimSpace(body.Model),
			Year:          body.Year,
			Mileage:       body.Mileage,
			CoverageLevel: strings.TrimSpace(body.CoverageLevel),
			TermMonths:    body.TermMonths,
		})
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

// OpenPayment validates customer and billing details and opens the card modal.
func OpenPayment(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		var body openPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.OpenPayment(ctx, actorFromRequest(r), id, body.Customer, body.Billing)
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

// SubmitCard charges the card entered in the modal.
func SubmitCard(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		var card payments.Card
		if err := validators.DecodeJSONBody(r, &card); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.SubmitCard(ctx, actorFromRequest(r), id, card)
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

// CancelPayment closes the modal. Cancellation is a normal outcome and answers 200.
func CancelPayment(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		page, err := svc.CancelPayment(ctx, actorFromRequest(r), id)
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

// CreateShare turns the current quote into a shareable link for a reseller's customer.
func CreateShare(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		var body shareRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		notes := validators.SanitizeString(body.Notes, maxNotesLength)
		page, err := svc.CreateShare(ctx, actorFromRequest(r), id, body.Customer, notes)
		writePage(ctx, logg, w, http.StatusCreated, page, err)
	})
}

func EmailShare(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withFlowID(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
		var body emailShareRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		notes := validators.SanitizeString(body.Notes, maxNotesLength)
		page, err := svc.EmailShare(ctx, actorFromRequest(r), id, body.Customer, notes)
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

func withFlowID(svc flow.Service, logg *logger.Logger, fn func(context.Context, http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flow service unavailable"))
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "flowId"))
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "flow id required"))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFlowID(ctx, id)
		}
		fn(ctx, w, r.WithContext(ctx), id)
	}
}

func actorFromRequest(r *http.Request) flow.Actor {
	return flow.Actor{
		UserID:  middleware.UserIDFromContext(r.Context()),
		Role:    middleware.RoleFromContext(r.Context()),
		Session: backend.SessionFromRequest(r),
	}
}

// writePage answers with the page. Failures carry the page alongside the
// error so clients can render inline messages; a user cancellation is a success.
func writePage(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, status int, page *flow.Page, err error) {
	if err != nil {
		if page != nil && pkgerrors.IsCode(err, pkgerrors.CodeCancelled) {
			responses.WriteSuccess(w, page)
			return
		}
		if page != nil {
			responses.WriteErrorWithData(ctx, logg, w, err, page)
			return
		}
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, status, page)
}
