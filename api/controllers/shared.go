package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/quoteflow/api/responses"
	"github.com/angelmondragon/quoteflow/api/validators"
	"github.com/angelmondragon/quoteflow/internal/flow"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

type acceptSharedRequest struct {
	FlowID   string             `json:"flow_id" validate:"required"`
	Customer types.CustomerInfo `json:"customer"`
}

// StartSharedFlow opens a ready-to-pay page from a reseller's share link.
func StartSharedFlow(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withShareToken(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, token string) {
		page, err := svc.StartShared(ctx, token)
		writePage(ctx, logg, w, http.StatusCreated, page, err)
	})
}

// AcceptSharedQuote records the customer's acceptance of a shared quote.
func AcceptSharedQuote(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return withShareToken(svc, logg, func(ctx context.Context, w http.ResponseWriter, r *http.Request, token string) {
		var body acceptSharedRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		flowID := strings.TrimSpace(body.FlowID)
		current, err := svc.Get(ctx, actorFromRequest(r), flowID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if current.Shared == nil || current.Shared.Token != token {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Shared quote not found"))
			return
		}
		page, err := svc.AcceptShared(ctx, flowID, body.Customer)
		writePage(ctx, logg, w, http.StatusOK, page, err)
	})
}

func withShareToken(svc flow.Service, logg *logger.Logger, fn func(context.Context, http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flow service unavailable"))
			return
		}
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "share token required"))
			return
		}
		fn(r.Context(), w, r, token)
	}
}
