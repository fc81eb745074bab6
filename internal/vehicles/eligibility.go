package vehicles

import (
	"fmt"
	"time"

	"github.com/angelmondragon/quoteflow/pkg/types"
)

const (
	maxVehicleAge      = 20
	agingVehicleAge    = 15
	maxMileage         = 200000
	highMileageWarning = 150000
)

// CheckEligibility applies the coverage rules for vehicle age, mileage and brand.
func CheckEligibility(vehicle types.VehicleInfo, mileage int, now time.Time) types.Eligibility {
	age := now.Year() - vehicle.Year
	result := types.Eligibility{
		Eligible:       true,
		Warnings:       []string{},
		Restrictions:   []string{},
		VehicleAge:     age,
		AssessmentDate: now.UTC(),
	}

	if age > maxVehicleAge {
		result.Eligible = false
		result.Restrictions = append(result.Restrictions,
			fmt.Sprintf("Vehicle is %d years old; coverage is limited to vehicles within %d model years", age, maxVehicleAge))
	}
	if mileage >= maxMileage {
		result.Eligible = false
		result.Restrictions = append(result.Restrictions,
			fmt.Sprintf("Vehicle mileage of %d meets or exceeds the %d mile limit", mileage, maxMileage))
	}

	if age > agingVehicleAge && age <= maxVehicleAge {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Vehicle is %d years old; coverage options may be limited", age))
	}
	if mileage > highMileageWarning && mileage < maxMileage {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("High mileage vehicle (%d miles); some coverage levels may be unavailable", mileage))
	}
	if IsLuxury(vehicle.Make) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s is a luxury brand; repair costs may affect pricing", NormalizeMake(vehicle.Make)))
	}
	return result
}

// Evaluate returns nil while eligibility is unknown: no vehicle yet, or no
// positive mileage entered. Unknown is never treated as ineligible.
func Evaluate(vehicle *types.VehicleInfo, mileage int, now time.Time) *types.Eligibility {
	if vehicle == nil || vehicle.Year <= 0 || mileage <= 0 {
		return nil
	}
	result := CheckEligibility(*vehicle, mileage, now)
	return &result
}
