package aggregate

import (
	"log/slog"
	"math"
	"strings"

	"offeragg/internal/provider"
)

// Normalize turns one provider's raw rows into canonical offers. Rows
// without a usable price or speed are dropped and logged; the rest of the
// batch is kept. The input slice is not modified.
func Normalize(id provider.ID, rows []provider.Offer, log *slog.Logger) []provider.Offer {
	if log == nil {
		log = slog.Default()
	}
	out := make([]provider.Offer, 0, len(rows))
	for i, o := range rows {
		o.Provider = id
		o.Name = strings.TrimSpace(o.Name)
		o.ConnectionType = strings.ToLower(strings.TrimSpace(o.ConnectionType))

		if !finite(o.CostEUR) || o.CostEUR < 0 {
			log.Warn("drop offer: invalid cost", "provider", string(id), "index", i, "name", o.Name, "cost_eur", o.CostEUR)
			continue
		}
		if o.SpeedMbps <= 0 {
			log.Warn("drop offer: invalid speed", "provider", string(id), "index", i, "name", o.Name, "speed_mbps", o.SpeedMbps)
			continue
		}

		o.ProductID = optString(o.ProductID)
		o.TV = optString(o.TV)
		o.PromoPriceEUR = optFloat(o.PromoPriceEUR)
		o.VoucherFixedEUR = optFloat(o.VoucherFixedEUR)
		o.VoucherPercent = optFloat(o.VoucherPercent)
		o.AfterTwoYearsEUR = optFloat(o.AfterTwoYearsEUR)
		o.PromoDurationMonths = optInt(o.PromoDurationMonths)
		o.MaxAge = optInt(o.MaxAge)
		o.LimitFromGB = optInt(o.LimitFromGB)

		if o.VoucherPercent != nil && o.VoucherFixedEUR != nil {
			o.VoucherFixedEUR = nil
		}
		if o.PromoPriceEUR == nil {
			months := provider.DefaultPromoMonths
			if o.PromoDurationMonths != nil {
				months = *o.PromoDurationMonths
			}
			switch {
			case o.VoucherPercent != nil:
				o.PromoPriceEUR = provider.Ptr(provider.PercentPromo(o.CostEUR, *o.VoucherPercent, nil, months))
				o.PromoDurationMonths = provider.Ptr(months)
			case o.VoucherFixedEUR != nil:
				o.PromoPriceEUR = provider.Ptr(provider.FixedPromo(o.CostEUR, *o.VoucherFixedEUR, months))
				o.PromoDurationMonths = provider.Ptr(months)
			}
		}

		if o.PromoPriceEUR != nil && *o.PromoPriceEUR < 0 {
			log.Warn("negative promo price clamped", "provider", string(id), "index", i, "name", o.Name, "promo_price_eur", *o.PromoPriceEUR)
			o.PromoPriceEUR = provider.Ptr(0.0)
		}

		first := o.CostEUR
		if o.PromoPriceEUR != nil {
			first = *o.PromoPriceEUR
		}
		o.CostFirstYearsEUR = provider.Ptr(first)
		if o.AfterTwoYearsEUR == nil {
			o.AfterTwoYearsEUR = provider.Ptr(o.CostEUR)
		}
		o.Unlimited = o.LimitFromGB == nil

		out = append(out, o)
	}
	return out
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func optString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func optFloat(f *float64) *float64 {
	if f == nil || !finite(*f) {
		return nil
	}
	return f
}

func optInt(i *int) *int {
	if i == nil || *i <= 0 {
		return nil
	}
	return i
}
