package filter

import (
	"fmt"
	"slices"
	"strings"

	"offeragg/internal/provider"
)

type SortKey int

const (
	SortNone SortKey = iota
	// SortFirstYearsCost orders by cost_first_years_eur, cheapest first.
	SortFirstYearsCost
	// SortAfterTwoYearsCost orders by after_two_years_eur, cheapest first.
	SortAfterTwoYearsCost
	// SortSpeed orders by speed_mbps, fastest first.
	SortSpeed
)

func (k SortKey) String() string {
	switch k {
	case SortFirstYearsCost:
		return "cost_first_years"
	case SortAfterTwoYearsCost:
		return "cost_later_years"
	case SortSpeed:
		return "speed"
	}
	return ""
}

// ParseSortKey maps a query value to a SortKey. Empty selects the default,
// SortFirstYearsCost.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cost_first_years", "cost_first_years_eur":
		return SortFirstYearsCost, nil
	case "cost_later_years", "after_two_years_eur":
		return SortAfterTwoYearsCost, nil
	case "speed", "speed_mbps":
		return SortSpeed, nil
	case "none":
		return SortNone, nil
	}
	return SortNone, fmt.Errorf("unknown sort key %q", s)
}

// Sort returns a stably sorted copy of offers; equal keys keep input order.
// Offers missing a cost key sort after those that have one.
func Sort(offers []provider.Offer, key SortKey) []provider.Offer {
	out := slices.Clone(offers)
	switch key {
	case SortFirstYearsCost:
		slices.SortStableFunc(out, func(a, b provider.Offer) int { return cmpOpt(a.CostFirstYearsEUR, b.CostFirstYearsEUR) })
	case SortAfterTwoYearsCost:
		slices.SortStableFunc(out, func(a, b provider.Offer) int { return cmpOpt(a.AfterTwoYearsEUR, b.AfterTwoYearsEUR) })
	case SortSpeed:
		slices.SortStableFunc(out, func(a, b provider.Offer) int { return b.SpeedMbps - a.SpeedMbps })
	}
	return out
}

func cmpOpt(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
