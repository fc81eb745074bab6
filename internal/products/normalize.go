package products

import (
	"encoding/json"
	"sort"
	"strings"
)

var coverageSuffixes = []struct {
	suffix string
	limit  int
}{
	{"_1000", 1000},
	{"_500", 500},
}

// SplitCoverageSuffix strips a `_500` or `_1000` coverage suffix from a
// product code. limit is zero when the code carries none.
func SplitCoverageSuffix(code string) (base string, limit int) {
	trimmed := strings.TrimSpace(code)
	lower := strings.ToLower(trimmed)
	for _, s := range coverageSuffixes {
		if strings.HasSuffix(lower, s.suffix) && len(trimmed) > len(s.suffix) {
			return trimmed[:len(trimmed)-len(s.suffix)], s.limit
		}
	}
	return trimmed, 0
}

// Normalize folds coverage variants into one product per base code, keeping
// first-seen order.
func Normalize(raw []backendProduct) []Product {
	index := map[string]int{}
	out := make([]Product, 0, len(raw))

	for _, p := range raw {
		code := strings.TrimSpace(p.ProductCode)
		if code == "" {
			continue
		}
		base, limit := SplitCoverageSuffix(code)

		i, seen := index[base]
		if !seen {
			out = append(out, Product{
				ProductType: base,
				ProductName: strings.TrimSpace(p.ProductName),
				BasePrice:   p.BasePrice,
				Pricing:     map[string]json.RawMessage{},
			})
			i = len(out) - 1
			index[base] = i
		}
		prod := &out[i]

		if seen && p.BasePrice.LessThan(prod.BasePrice) {
			prod.BasePrice = p.BasePrice
		}
		if limit > 0 {
			prod.CoverageLimits = appendUnique(prod.CoverageLimits, limit)
		}
		for _, term := range p.TermsAvailable {
			if term > 0 {
				prod.TermsAvailable = appendUnique(prod.TermsAvailable, term)
			}
		}
		if len(p.Pricing) > 0 {
			prod.Pricing[code] = p.Pricing
		}
	}

	for i := range out {
		sort.Ints(out[i].CoverageLimits)
		sort.Ints(out[i].TermsAvailable)
		if len(out[i].Pricing) == 0 {
			out[i].Pricing = nil
		}
	}
	return out
}

func appendUnique(values []int, v int) []int {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
