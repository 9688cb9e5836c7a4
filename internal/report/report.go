// Package report renders canonical offers for a terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"offeragg/internal/provider"
)

// MaxNameWidth caps the offer name column.
const MaxNameWidth = 36

var headers = []string{"PROVIDER", "NAME", "MBIT/S", "MONTHLY", "PROMO", "AVG 24M", "AFTER 24M", "TERM", "TYPE", "TV", "LIMIT", "AGE", "INSTALL"}

// numeric columns are right-aligned.
var numeric = map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 10: true, 11: true}

// Table writes offers as an aligned plain-text table. Widths are measured
// in terminal cells so umlauts and wide runes line up.
func Table(w io.Writer, offers []provider.Offer) error {
	rows := make([][]string, 0, len(offers)+1)
	rows = append(rows, headers)
	for _, o := range offers {
		rows = append(rows, row(o))
	}

	widths := make([]int, len(headers))
	for _, r := range rows {
		for i, cell := range r {
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	for _, r := range rows {
		for i, cell := range r {
			if i > 0 {
				sb.WriteString("  ")
			}
			pad := strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			if numeric[i] {
				sb.WriteString(pad + cell)
			} else if i < len(r)-1 {
				sb.WriteString(cell + pad)
			} else {
				sb.WriteString(cell)
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%d offers\n", len(offers))
	_, err := io.WriteString(w, sb.String())
	return err
}

// JSON writes offers as an indented JSON array; nil becomes [].
func JSON(w io.Writer, offers []provider.Offer) error {
	if offers == nil {
		offers = []provider.Offer{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(offers)
}

func row(o provider.Offer) []string {
	promo := "-"
	if o.PromoPriceEUR != nil {
		promo = euro(o.PromoPriceEUR)
		if o.PromoDurationMonths != nil {
			promo += fmt.Sprintf(" x%d", *o.PromoDurationMonths)
		}
	}
	limit := "unlimited"
	if o.LimitFromGB != nil {
		limit = strconv.Itoa(*o.LimitFromGB) + " GB"
	}
	install := "no"
	if o.InstallationIncluded {
		install = "yes"
	}
	return []string{
		string(o.Provider),
		runewidth.Truncate(o.Name, MaxNameWidth, "…"),
		strconv.Itoa(o.SpeedMbps),
		euro(&o.CostEUR),
		promo,
		euro(o.CostFirstYearsEUR),
		euro(o.AfterTwoYearsEUR),
		strconv.Itoa(o.DurationMonths) + "m",
		o.ConnectionType,
		str(o.TV),
		limit,
		intOr(o.MaxAge),
		install,
	}
}

func euro(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + " €"
}

func str(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func intOr(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
