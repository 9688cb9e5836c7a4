package filter

import (
	"strings"

	"offeragg/internal/provider"
)

// Filter reports whether an offer should be kept.
type Filter func(provider.Offer) bool

// Apply keeps the offers every filter accepts. The input is not modified.
func Apply(offers []provider.Offer, fs ...Filter) []provider.Offer {
	out := make([]provider.Offer, 0, len(offers))
next:
	for _, o := range offers {
		for _, f := range fs {
			if f != nil && !f(o) {
				continue next
			}
		}
		out = append(out, o)
	}
	return out
}

// MinSpeed keeps offers of at least mbps.
func MinSpeed(mbps int) Filter {
	return func(o provider.Offer) bool { return o.SpeedMbps >= mbps }
}

// MaxDuration keeps offers whose contract runs at most months.
func MaxDuration(months int) Filter {
	return func(o provider.Offer) bool { return o.DurationMonths <= months }
}

type TVMode int

const (
	TVRequired TVMode = iota + 1
	TVExcluded
)

func TV(mode TVMode) Filter {
	return func(o provider.Offer) bool {
		if mode == TVExcluded {
			return o.TV == nil
		}
		return o.TV != nil
	}
}

type LimitMode int

const (
	// LimitUnlimitedOnly keeps offers without a data cap.
	LimitUnlimitedOnly LimitMode = iota + 1
	// LimitAtLeast keeps unlimited offers and those capped at gb or more.
	LimitAtLeast
)

func Limit(mode LimitMode, gb int) Filter {
	return func(o provider.Offer) bool {
		if o.LimitFromGB == nil {
			return true
		}
		return mode == LimitAtLeast && *o.LimitFromGB >= gb
	}
}

func InstallationRequired() Filter {
	return func(o provider.Offer) bool { return o.InstallationIncluded }
}

// ConnectionTypes keeps offers whose connection type is one of types,
// compared case-insensitively.
func ConnectionTypes(types ...string) Filter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return func(o provider.Offer) bool {
		_, ok := set[strings.ToLower(o.ConnectionType)]
		return ok
	}
}

func Providers(ids ...provider.ID) Filter {
	set := make(map[provider.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(o provider.Offer) bool {
		_, ok := set[o.Provider]
		return ok
	}
}

// Age keeps offers open to a customer of the given age: those without an
// age restriction and those whose max_age is at least age.
func Age(age int) Filter {
	return func(o provider.Offer) bool { return o.MaxAge == nil || *o.MaxAge >= age }
}

// Criteria is a caller's filter selection. Nil or empty fields do not filter.
type Criteria struct {
	MinSpeed             *int
	MaxDuration          *int
	TV                   *bool
	UnlimitedOnly        bool
	MinLimitGB           *int
	InstallationRequired bool
	ConnectionTypes      []string
	Providers            []provider.ID
	Age                  *int
}

// Filters builds the predicate list for c in a fixed order.
func (c Criteria) Filters() []Filter {
	var fs []Filter
	if c.MinSpeed != nil {
		fs = append(fs, MinSpeed(*c.MinSpeed))
	}
	if c.MaxDuration != nil {
		fs = append(fs, MaxDuration(*c.MaxDuration))
	}
	if c.TV != nil {
		if *c.TV {
			fs = append(fs, TV(TVRequired))
		} else {
			fs = append(fs, TV(TVExcluded))
		}
	}
	switch {
	case c.UnlimitedOnly:
		fs = append(fs, Limit(LimitUnlimitedOnly, 0))
	case c.MinLimitGB != nil:
		fs = append(fs, Limit(LimitAtLeast, *c.MinLimitGB))
	}
	if c.InstallationRequired {
		fs = append(fs, InstallationRequired())
	}
	if len(c.ConnectionTypes) > 0 {
		fs = append(fs, ConnectionTypes(c.ConnectionTypes...))
	}
	if len(c.Providers) > 0 {
		fs = append(fs, Providers(c.Providers...))
	}
	if c.Age != nil {
		fs = append(fs, Age(*c.Age))
	}
	return fs
}

// ParseBool accepts true, 1, yes and y (any case) as true; anything else
// is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}
