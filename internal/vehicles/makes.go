package vehicles

import "strings"

var knownMakes = []string{
	"Acura", "Alfa Romeo", "Audi", "BMW", "Buick", "Cadillac", "Chevrolet", "Chrysler",
	"Dodge", "Fiat", "Ford", "Genesis", "GMC", "Honda", "Hyundai", "Infiniti", "Jaguar",
	"Jeep", "Kia", "Land Rover", "Lexus", "Lincoln", "Maserati", "Mazda", "Mercedes-Benz",
	"Mini", "Mitsubishi", "Nissan", "Porsche", "Ram", "Subaru", "Tesla", "Toyota",
	"Volkswagen", "Volvo",
}

var luxuryMakes = map[string]struct{}{
	"audi":          {},
	"bmw":           {},
	"cadillac":      {},
	"genesis":       {},
	"jaguar":        {},
	"land rover":    {},
	"lexus":         {},
	"lincoln":       {},
	"maserati":      {},
	"mercedes-benz": {},
	"porsche":       {},
}

var makeIndex = func() map[string]string {
	idx := make(map[string]string, len(knownMakes))
	for _, m := range knownMakes {
		idx[strings.ToLower(m)] = m
	}
	// decoders report these spellings too
	idx["mercedes benz"] = "Mercedes-Benz"
	idx["mercedes"] = "Mercedes-Benz"
	idx["chevy"] = "Chevrolet"
	idx["vw"] = "Volkswagen"
	return idx
}()

// NormalizeMake maps a decoded make onto the known list, case-insensitively.
// Unknown makes are returned trimmed but otherwise untouched.
func NormalizeMake(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if canonical, ok := makeIndex[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// IsLuxury reports whether make belongs to a luxury brand.
func IsLuxury(make string) bool {
	_, ok := luxuryMakes[strings.ToLower(NormalizeMake(make))]
	return ok
}
