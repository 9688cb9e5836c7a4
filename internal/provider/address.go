package provider

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CountryCode is the only country the upstream catalogs serve.
const CountryCode = "DE"

// ErrInvalidAddress is returned when a required address field is empty.
var ErrInvalidAddress = errors.New("invalid address")

// Address is the query every provider is asked about.
type Address struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"plz"`
	City        string `json:"city"`
}

// Validate checks that all fields are present.
func (a Address) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(a.HouseNumber) == "" {
		missing = append(missing, "house_number")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "plz")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}
	return nil
}

// Canonical returns the form used to identify an address in the cache:
// lower-cased, whitespace collapsed, ß spelled out and diacritics removed.
func (a Address) Canonical() Address {
	c := func(s string) string {
		return strings.ToLower(fold(strings.Join(strings.Fields(s), " ")))
	}
	return Address{
		Street:      c(a.Street),
		HouseNumber: c(a.HouseNumber),
		PostalCode:  c(a.PostalCode),
		City:        c(a.City),
	}
}

// ASCII returns a copy with umlauts and accents folded to plain ASCII,
// for upstreams that take the address as free text.
func (a Address) ASCII() Address {
	t := func(s string) string { return fold(strings.TrimSpace(s)) }
	return Address{
		Street:      t(a.Street),
		HouseNumber: t(a.HouseNumber),
		PostalCode:  t(a.PostalCode),
		City:        t(a.City),
	}
}

var sharpS = strings.NewReplacer("ß", "ss", "ẞ", "SS")

func fold(s string) string {
	s = sharpS.Replace(s)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	b := make([]rune, 0, len(out))
	for _, r := range out {
		if r <= unicode.MaxASCII {
			b = append(b, r)
		}
	}
	return string(b)
}
