package webwunder

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"offeragg/internal/httpx"
	"offeragg/internal/provider"
)

const (
	defaultBaseURL = "https://webwunder.gendev7.check24.fun"
	serviceNS      = "http://webwunder.gendev7.check24.fun/offerservice"
)

// Connections are queried in this order, each with and without installation.
var Connections = []string{"FIBER", "DSL", "CABLE"}

// Client calls the WebWunder SOAP offer service.
type Client struct {
	baseURL string
	apiKey  string
	http    httpx.Doer
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithHTTPClient sets the transport.
func WithHTTPClient(d httpx.Doer) Option { return func(c *Client) { c.http = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func New(apiKey string, opts ...Option) *Client {
	c := &Client{baseURL: defaultBaseURL, apiKey: apiKey, http: http.DefaultClient, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ID() provider.ID { return provider.WebWunder }

type query struct {
	connection   string
	installation bool
}

func queries() []query {
	qs := make([]query, 0, 2*len(Connections))
	for _, conn := range Connections {
		for _, inst := range []bool{true, false} {
			qs = append(qs, query{connection: conn, installation: inst})
		}
	}
	return qs
}

// Fetch issues one request per connection type and installation choice and
// concatenates the answers in query order. Any failed request fails the batch.
func (c *Client) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	qs := queries()
	results := make([][]provider.Offer, len(qs))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range qs {
		g.Go(func() error {
			offers, err := c.call(gctx, addr, q)
			if err != nil {
				return fmt.Errorf("webwunder: %s installation=%t: %w", q.connection, q.installation, err)
			}
			results[i] = offers
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]provider.Offer, 0, 32)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, addr provider.Address, q query) ([]provider.Offer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/endpunkte/soap/ws/getInternetOffers",
		bytes.NewReader(Envelope(addr, q.connection, q.installation)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, err
	}

	var env responseEnvelope
	if err := xml.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if env.Fault != nil {
		return nil, fmt.Errorf("soap fault: %s", strings.TrimSpace(env.Fault.String))
	}

	out := make([]provider.Offer, 0, len(env.Products))
	for _, p := range env.Products {
		o, err := p.offer(q.installation, c.log)
		if err != nil {
			c.log.Warn("webwunder: skip malformed product", "product_id", p.ProductID, "error", err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Envelope renders the legacyGetInternetOffers request.
func Envelope(addr provider.Address, connection string, installation bool) []byte {
	var b bytes.Buffer
	el := func(name, value string) {
		b.WriteString("<gs:" + name + ">")
		_ = xml.EscapeText(&b, []byte(value))
		b.WriteString("</gs:" + name + ">")
	}
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:gs="` + serviceNS + `">`)
	b.WriteString(`<soapenv:Header/><soapenv:Body><gs:legacyGetInternetOffers><gs:input>`)
	el("installation", strconv.FormatBool(installation))
	el("connectionEnum", connection)
	b.WriteString("<gs:address>")
	el("street", addr.Street)
	el("houseNumber", addr.HouseNumber)
	el("city", addr.City)
	el("plz", addr.PostalCode)
	el("countryCode", provider.CountryCode)
	b.WriteString("</gs:address>")
	b.WriteString(`</gs:input></gs:legacyGetInternetOffers></soapenv:Body></soapenv:Envelope>`)
	return b.Bytes()
}

type responseEnvelope struct {
	XMLName  xml.Name  `xml:"Envelope"`
	Products []product `xml:"Body>Output>products"`
	Fault    *struct {
		String string `xml:"faultstring"`
	} `xml:"Body>Fault"`
}

type product struct {
	ProductID    string `xml:"productId"`
	ProviderName string `xml:"providerName"`
	Info         struct {
		Speed                          int      `xml:"speed"`
		MonthlyCostInCent              *int64   `xml:"monthlyCostInCent"`
		MonthlyCostInCentFrom25thMonth *int64   `xml:"monthlyCostInCentFrom25thMonth"`
		Voucher                        *voucher `xml:"voucher"`
		ContractDurationInMonths       int      `xml:"contractDurationInMonths"`
		ConnectionType                 string   `xml:"connectionType"`
	} `xml:"productInfo"`
}

// voucher is either a percentageVoucher or an absoluteVoucher, told apart
// by its xsi:type attribute.
type voucher struct {
	Type                string   `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
	Percentage          *float64 `xml:"percentage"`
	MaxDiscountInCent   *int64   `xml:"maxDiscountInCent"`
	DiscountInCent      *int64   `xml:"discountInCent"`
	MinOrderValueInCent *int64   `xml:"minOrderValueInCent"`
}

// kind strips any namespace prefix from the xsi:type value.
func (v *voucher) kind() string {
	t := v.Type
	if i := strings.LastIndexByte(t, ':'); i >= 0 {
		t = t[i+1:]
	}
	return t
}

// offer converts p. An unrecognized voucher type leaves the voucher
// fields nil and keeps the product.
func (p product) offer(installation bool, log *slog.Logger) (provider.Offer, error) {
	info := p.Info
	if info.MonthlyCostInCent == nil {
		return provider.Offer{}, fmt.Errorf("missing monthlyCostInCent")
	}
	if info.Speed <= 0 {
		return provider.Offer{}, fmt.Errorf("invalid speed %d", info.Speed)
	}
	o := provider.Offer{
		Provider:             provider.WebWunder,
		Name:                 strings.TrimSpace(p.ProviderName),
		SpeedMbps:            info.Speed,
		CostEUR:              provider.Cents(*info.MonthlyCostInCent),
		DurationMonths:       info.ContractDurationInMonths,
		ConnectionType:       strings.ToLower(info.ConnectionType),
		InstallationIncluded: installation,
	}
	if id := strings.TrimSpace(p.ProductID); id != "" {
		o.ProductID = provider.Ptr(id)
	}
	if info.MonthlyCostInCentFrom25thMonth != nil {
		o.AfterTwoYearsEUR = provider.Ptr(provider.Cents(*info.MonthlyCostInCentFrom25thMonth))
	}

	v := info.Voucher
	if v == nil {
		return o, nil
	}
	months := provider.DefaultPromoMonths
	switch v.kind() {
	case "percentageVoucher":
		if v.Percentage == nil {
			return o, nil
		}
		var capEUR *float64
		if v.MaxDiscountInCent != nil {
			capEUR = provider.Ptr(provider.Cents(*v.MaxDiscountInCent))
		}
		o.VoucherPercent = v.Percentage
		o.PromoDurationMonths = provider.Ptr(months)
		o.PromoPriceEUR = provider.Ptr(provider.PercentPromo(o.CostEUR, *v.Percentage, capEUR, months))
	case "absoluteVoucher":
		if v.DiscountInCent == nil {
			return o, nil
		}
		fixed := provider.Cents(*v.DiscountInCent)
		o.VoucherFixedEUR = provider.Ptr(fixed)
		o.PromoDurationMonths = provider.Ptr(months)
		o.PromoPriceEUR = provider.Ptr(provider.FixedPromo(o.CostEUR, fixed, months))
	default:
		log.Warn("webwunder: unknown voucher type ignored", "product_id", p.ProductID, "type", v.Type)
	}
	return o, nil
}
