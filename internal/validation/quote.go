package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

const (
	minHeroTermYears = 1
	maxHeroTermYears = 5
	minVehicleYear   = 1990
	maxMileage       = 500000
)

// ValidateQuoteData returns human-readable problems with a quote form. An
// empty result means the form may be submitted.
func ValidateQuoteData(req types.QuoteRequest) []string {
	return ValidateQuoteDataAt(req, time.Now())
}

// ValidateQuoteDataAt is ValidateQuoteData against a fixed clock.
func ValidateQuoteDataAt(req types.QuoteRequest, now time.Time) []string {
	switch req.Kind {
	case enums.QuoteKindHero:
		if req.Hero == nil {
			return []string{"Hero quote details are required"}
		}
		return validateHero(*req.Hero)
	case enums.QuoteKindVSC:
		if req.VSC == nil {
			return []string{"VSC quote details are required"}
		}
		return validateVSC(*req.VSC, now)
	default:
		return []string{fmt.Sprintf("Unsupported quote type %q", req.Kind)}
	}
}

func validateHero(h types.HeroQuoteRequest) []string {
	var errs []string
	if strings.TrimSpace(h.ProductType) == "" {
		errs = append(errs, "Product type is required")
	}
	if h.TermYears < minHeroTermYears || h.TermYears > maxHeroTermYears {
		errs = append(errs, fmt.Sprintf("Term must be between %d and %d years", minHeroTermYears, maxHeroTermYears))
	}
	if h.CoverageLimit <= 0 {
		errs = append(errs, "Coverage limit is required")
	}
	errs = append(errs, customerTypeErrors(h.CustomerType)...)
	return errs
}

func validateVSC(v types.VSCQuoteRequest, now time.Time) []string {
	var errs []string
	if strings.TrimSpace(v.VIN) != "" {
		if res := ValidateVIN(NormalizeVIN(v.VIN)); !res.Valid {
			errs = append(errs, res.Message)
		}
	}
	if strings.TrimSpace(v.Make) == "" {
		errs = append(errs, "Vehicle make is required")
	}
	if strings.TrimSpace(v.Model) == "" {
		errs = append(errs, "Vehicle model is required")
	}
	maxYear := now.Year() + 1
	if v.Year < minVehicleYear || v.Year > maxYear {
		errs = append(errs, fmt.Sprintf("Vehicle year must be between %d and %d", minVehicleYear, maxYear))
	}
	if v.Mileage < 0 || v.Mileage > maxMileage {
		errs = append(errs, "Mileage must be between 0 and 500,000")
	}
	if strings.TrimSpace(v.CoverageLevel) == "" {
		errs = append(errs, "Coverage level is required")
	}
	if v.TermMonths <= 0 {
		errs = append(errs, "Term length is required")
	}
	errs = append(errs, customerTypeErrors(v.CustomerType)...)
	return errs
}

func customerTypeErrors(ct enums.CustomerType) []string {
	if ct == "" {
		return []string{"Customer type is required"}
	}
	if !ct.IsValid() {
		return []string{"Customer type must be retail or wholesale"}
	}
	return nil
}

// ValidateCustomer lists the missing required customer fields.
func ValidateCustomer(c types.CustomerInfo) []string {
	return c.MissingFields()
}

// ValidateBilling lists the missing required billing fields.
func ValidateBilling(b types.BillingInfo) []string {
	return b.MissingFields()
}

// JoinMessages renders validation problems as one banner string.
func JoinMessages(msgs []string) string {
	return strings.Join(msgs, ", ")
}
