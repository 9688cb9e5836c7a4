package verbyndich

import (
	"regexp"
	"strconv"
	"strings"

	"offeragg/internal/provider"
)

// Description holds what could be read from an offer's prose. A nil field
// means the phrase carrying it was not found.
type Description struct {
	CostEUR          *float64 `json:"cost_eur"`
	ConnectionType   *string  `json:"connection_type"`
	SpeedMbps        *int     `json:"speed_mbps"`
	TV               *string  `json:"tv"`
	DurationMonths   *int     `json:"duration_months"`
	MaxAge           *int     `json:"max_age"`
	LimitFromGB      *int     `json:"limit_from_gb"`
	VoucherPercent   *float64 `json:"voucher_percent"`
	MaxDiscountEUR   *float64 `json:"max_discount_eur"`
	PromoMonths      *int     `json:"promo_months"`
	VoucherFixedEUR  *float64 `json:"voucher_fixed_eur"`
	AfterTwoYearsEUR *float64 `json:"after_two_years_eur"`
}

const amount = `(\d+(?:[.,]\d{1,2})?)`

// Recognized phrases. Each one fills exactly one field.
var (
	rePrice       = regexp.MustCompile(`Für nur ` + amount + ` ?€ im Monat`)
	reConnection  = regexp.MustCompile(`(\w+)-Verbindung`)
	reSpeed       = regexp.MustCompile(`einer Geschwindigkeit von (\d+) ?Mbit/s`)
	reTV          = regexp.MustCompile(`folgende Fernsehsender enthalten (\w+)\.`)
	reDuration    = regexp.MustCompile(`Mindestvertragslaufzeit (\d+) Monate`)
	reMaxAge      = regexp.MustCompile(`nur für Personen unter (\d+) Jahren`)
	reLimit       = regexp.MustCompile(`Ab (\d+) ?GB pro Monat wird die Geschwindigkeit gedrosselt`)
	rePercent     = regexp.MustCompile(`einen Rabatt von (\d+(?:[.,]\d+)?)%`)
	reMaxDiscount = regexp.MustCompile(`Rabatt beträgt ` + amount + ` ?€`)
	rePromoMonths = regexp.MustCompile(`monatliche Rechnung bis zum (\d+)\. Monat`)
	reFixed       = regexp.MustCompile(`einen einmaligen Rabatt von ` + amount + ` ?€`)
	reLaterPrice  = regexp.MustCompile(`Monat beträgt der monatliche Preis ` + amount + ` ?€`)
)

// ParseDescription extracts offer fields from free text. Unknown or
// missing phrases leave the field nil and are never an error.
func ParseDescription(s string) Description {
	var d Description
	d.CostEUR = matchFloat(rePrice, s)
	if m := reConnection.FindStringSubmatch(s); m != nil {
		d.ConnectionType = provider.Ptr(strings.ToLower(m[1]))
	}
	d.SpeedMbps = matchInt(reSpeed, s)
	if m := reTV.FindStringSubmatch(s); m != nil {
		d.TV = provider.Ptr(m[1])
	}
	d.DurationMonths = matchInt(reDuration, s)
	d.MaxAge = matchInt(reMaxAge, s)
	d.LimitFromGB = matchInt(reLimit, s)
	d.VoucherPercent = matchFloat(rePercent, s)
	d.MaxDiscountEUR = matchFloat(reMaxDiscount, s)
	d.PromoMonths = matchInt(rePromoMonths, s)
	d.VoucherFixedEUR = matchFloat(reFixed, s)
	d.AfterTwoYearsEUR = matchFloat(reLaterPrice, s)
	return d
}

func matchInt(re *regexp.Regexp, s string) *int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

func matchFloat(re *regexp.Regexp, s string) *float64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &v
}
