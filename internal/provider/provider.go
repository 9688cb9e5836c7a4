package provider

import (
	"context"
	"strings"
)

// ID identifies one of the upstream offer catalogs.
type ID string

const (
	ByteMe      ID = "ByteMe"
	PingPerfect ID = "Ping Perfect"
	ServusSpeed ID = "Servus Speed"
	VerbynDich  ID = "VerbynDich"
	WebWunder   ID = "WebWunder"
)

var allIDs = []ID{ByteMe, PingPerfect, ServusSpeed, VerbynDich, WebWunder}

// IDs returns every known provider in a fixed order.
func IDs() []ID {
	out := make([]ID, len(allIDs))
	copy(out, allIDs)
	return out
}

// Valid reports whether id is one of the five known providers.
func (id ID) Valid() bool {
	for _, v := range allIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Slug is a lower-case, space-free form used in cache keys and file names.
func (id ID) Slug() string {
	return strings.ToLower(strings.ReplaceAll(string(id), " ", ""))
}

// ParseID resolves a provider name case-insensitively, ignoring spaces.
func ParseID(s string) (ID, bool) {
	want := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, id := range allIDs {
		if id.Slug() == want {
			return id, true
		}
	}
	return "", false
}

// Offer is the canonical shape every adapter produces.
// Nil pointers are the one representation of a missing value.
type Offer struct {
	Provider  ID      `json:"provider"`
	ProductID *string `json:"product_id"`
	Name      string  `json:"name"`
	SpeedMbps int     `json:"speed_mbps"`
	CostEUR   float64 `json:"cost_eur"`

	PromoPriceEUR       *float64 `json:"promo_price_eur"`
	PromoDurationMonths *int     `json:"promo_duration_months"`
	VoucherFixedEUR     *float64 `json:"voucher_fixed_eur"`
	VoucherPercent      *float64 `json:"voucher_percent"`

	CostFirstYearsEUR *float64 `json:"cost_first_years_eur"`
	AfterTwoYearsEUR  *float64 `json:"after_two_years_eur"`

	DurationMonths       int     `json:"duration_months"`
	ConnectionType       string  `json:"connection_type"`
	InstallationIncluded bool    `json:"installation_included"`
	TV                   *string `json:"tv"`
	MaxAge               *int    `json:"max_age"`
	LimitFromGB          *int    `json:"limit_from_gb"`
	Unlimited            bool    `json:"unlimited"`
}

//go:generate mockgen -package=providermock -destination=providermock/provider.go -source=provider.go Provider

// Provider fetches pre-canonical offers for an address from one upstream.
// Implementations return transport and status errors unchanged so that a
// wrapping layer can decide whether to retry.
type Provider interface {
	ID() ID
	Fetch(ctx context.Context, addr Address) ([]Offer, error)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
