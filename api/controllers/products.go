package controllers

import (
	"net/http"

	"github.com/angelmondragon/quoteflow/api/middleware"
	"github.com/angelmondragon/quoteflow/api/responses"
	productsvc "github.com/angelmondragon/quoteflow/internal/products"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
)

// ListProducts returns the normalized hero product catalog priced for the caller's tier.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		products, err := svc.List(r.Context(), backend.SessionFromRequest(r), middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}
