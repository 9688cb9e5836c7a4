package provider

import "math"

// DefaultPromoMonths is the amortization window used when an upstream
// does not state one.
const DefaultPromoMonths = 24

// PercentPromo returns the monthly promo price for a percentage voucher.
// When the percentage applied over the whole promo window would exceed
// capEUR, the cap spread over the window is used instead. A nil cap means
// the percentage is unbounded. The result never drops below zero.
func PercentPromo(cost, percent float64, capEUR *float64, months int) float64 {
	if months <= 0 {
		months = DefaultPromoMonths
	}
	discount := cost * percent / 100
	if capEUR != nil && discount*float64(months) > *capEUR {
		discount = *capEUR / float64(months)
	}
	return Round2(max(0, cost-discount))
}

// FixedPromo returns the monthly promo price for a one-off discount spread
// over months. A discount larger than the whole window yields zero.
func FixedPromo(cost, fixed float64, months int) float64 {
	if months <= 0 {
		months = DefaultPromoMonths
	}
	return Round2(max(0, cost-fixed/float64(months)))
}

// Cents converts an integer cent amount to euros.
func Cents(c int64) float64 { return Round2(float64(c) / 100) }

// Round2 rounds to whole cents.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }
