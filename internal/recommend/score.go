// Package recommend scores catalog items against each other and ranks them
// for the "alternatives" and "recommended for you" views.
//
// Everything in this file is pure: no I/O, no errors. Malformed fields
// contribute nothing to a score.
package recommend

import (
	"math"
	"strings"

	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
)

// Field weights. Generic name dominates; equal prescription requirement is
// a tie-breaker.
const (
	WeightGenericName  = 5.0
	WeightCategory     = 3.0
	WeightManufacturer = 2.0
	WeightDosage       = 1.5
	WeightSideEffects  = 1.0
	WeightPrice        = 1.0
	WeightPrescription = 1.0
)

// TextMatchScore compares two free-text attributes case-insensitively:
// 1 for an exact match, 0.8 when one contains the other, otherwise 0.
// An empty side scores 0.
func TextMatchScore(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	return 0
}

// PriceSimilarity buckets the relative price difference
// |a-b| / ((a+b)/2): under 10% scores 1, under 25% 0.6, under 50% 0.3.
// Zero, negative or non-finite prices score 0.
func PriceSimilarity(base, other float64) float64 {
	if !validPrice(base) || !validPrice(other) {
		return 0
	}
	ratio := math.Abs(base-other) / ((base + other) / 2)
	switch {
	case ratio < 0.10:
		return 1
	case ratio < 0.25:
		return 0.6
	case ratio < 0.50:
		return 0.3
	}
	return 0
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Score is the weighted similarity of cand to base. Comparing an item with
// itself scores 0.
func Score(base, cand catalog.Item) float64 {
	if base.ID == cand.ID {
		return 0
	}
	s := WeightGenericName*TextMatchScore(base.GenericName, cand.GenericName) +
		WeightCategory*TextMatchScore(base.Category, cand.Category) +
		WeightManufacturer*TextMatchScore(base.Manufacturer, cand.Manufacturer) +
		WeightDosage*TextMatchScore(base.Dosage, cand.Dosage) +
		WeightSideEffects*TextMatchScore(base.SideEffects, cand.SideEffects) +
		WeightPrice*PriceSimilarity(base.Price, cand.Price)
	if base.RequiresPrescription == cand.RequiresPrescription {
		s += WeightPrescription
	}
	return s
}
