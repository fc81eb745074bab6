package controllers

import (
	"net/http"

	"github.com/angelmondragon/quoteflow/api/responses"
	"github.com/angelmondragon/quoteflow/api/validators"
	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/logger"
)

type validateVINBody struct {
	VIN string `json:"vin"`
}

// ValidateVIN reports whether a VIN is well formed without decoding it.
// Invalid VINs are a normal result, not an error.
func ValidateVIN(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body validateVINBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result := validation.ValidateVIN(validation.NormalizeVIN(validators.SanitizeString(body.VIN, 64)))
		responses.WriteSuccess(w, map[string]any{
			"vin":     validation.NormalizeVIN(body.VIN),
			"valid":   result.Valid,
			"message": result.Message,
		})
	}
}
