package booking

import (
	"math"

	"github.com/iliyamo/event-reservation-engine/internal/pricing"
)

// totalsTolerance absorbs cent rounding in caller supplied totals.
const totalsTolerance = 0.01

// Totals are the money amounts of a reservation; Total == Subtotal + Tax.
type Totals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

// ComputeTotals sums the resolved line prices and applies taxRate.
func ComputeTotals(prices []float64, taxRate float64) Totals {
	var sub float64
	for _, p := range prices {
		sub += p
	}
	sub = pricing.Round2(sub)
	tax := pricing.Round2(sub * taxRate)
	return Totals{Subtotal: sub, Tax: tax, Total: pricing.Round2(sub + tax)}
}

// TrustedTotals derives totals from a caller supplied subtotal. A missing
// tax is taken from total-subtotal when the total was sent, else from
// taxRate. Amounts that do not add up are rejected.
func TrustedTotals(subtotal float64, tax, total *float64, taxRate float64) (Totals, error) {
	sub := pricing.Round2(subtotal)
	var t float64
	switch {
	case tax != nil:
		t = pricing.Round2(*tax)
	case total != nil:
		t = pricing.Round2(*total - sub)
	default:
		t = pricing.Round2(sub * taxRate)
	}
	if t < 0 {
		return Totals{}, invalid("tax must not be negative")
	}
	sum := pricing.Round2(sub + t)
	if total != nil && math.Abs(*total-sum) > totalsTolerance {
		return Totals{}, invalid("total %.2f does not equal subtotal %.2f plus tax %.2f", *total, sub, t)
	}
	return Totals{Subtotal: sub, Tax: t, Total: sum}, nil
}

// PlanTier reduces the plan tiers of the selected providers: one distinct
// tier is used as is, several collapse to mixed, none falls back.
func PlanTier(tiers []int, fallback, mixed int) int {
	distinct := map[int]struct{}{}
	for _, t := range tiers {
		distinct[t] = struct{}{}
	}
	switch len(distinct) {
	case 0:
		return fallback
	case 1:
		for t := range distinct {
			return t
		}
	}
	return mixed
}
