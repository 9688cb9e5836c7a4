package byteme

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"offeragg/internal/httpx"
	"offeragg/internal/provider"
)

const defaultBaseURL = "https://byteme.gendev7.check24.fun"

// columns the CSV header must contain.
var columns = []string{
	"productId", "providerName", "speed", "monthlyCostInCent",
	"afterTwoYearsMonthlyCost", "durationInMonths", "connectionType",
	"installationService", "tv", "limitFrom", "maxAge", "voucherType", "voucherValue",
}

// Client reads the ByteMe product table for an address.
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

// WithLogger sets the logger used for skipped rows.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New creates a ByteMe client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{baseURL: defaultBaseURL, apiKey: apiKey, http: http.DefaultClient, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ID() provider.ID { return provider.ByteMe }

// Fetch downloads the CSV for addr and converts every well-formed row.
func (c *Client) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	q := url.Values{}
	q.Set("street", addr.Street)
	q.Set("houseNumber", addr.HouseNumber)
	q.Set("city", addr.City)
	q.Set("plz", addr.PostalCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/app/api/products/data?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, err
	}
	return c.parse(resp.Body)
}

func (c *Client) parse(r io.Reader) ([]provider.Offer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []provider.Offer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("byteme: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("byteme: missing column %q", col)
		}
	}

	seen := make(map[string]struct{})
	out := make([]provider.Offer, 0, 32)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.log.Warn("byteme: skip unreadable row", "line", line, "error", err)
			continue
		}
		dedup := strings.Join(rec, "\x1f")
		if _, dup := seen[dedup]; dup {
			continue
		}
		seen[dedup] = struct{}{}

		o, err := toOffer(row{rec: rec, idx: idx})
		if err != nil {
			c.log.Warn("byteme: skip malformed row", "line", line, "error", err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type row struct {
	rec []string
	idx map[string]int
}

func (r row) get(col string) string {
	i := r.idx[col]
	if i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

// optFloat parses an optional numeric column; "" and "NaN" are absent.
func (r row) optFloat(col string) (*float64, error) {
	s := r.get(col)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	return &f, nil
}

// optInt is optFloat truncated to an integer.
func (r row) optInt(col string) (*int, error) {
	f, err := r.optFloat(col)
	if f == nil || err != nil {
		return nil, err
	}
	return provider.Ptr(int(*f)), nil
}

func (r row) reqInt(col string) (int, error) {
	v, err := r.optInt(col)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("%s: empty", col)
	}
	return *v, nil
}

func toOffer(r row) (provider.Offer, error) {
	speed, err := r.reqInt("speed")
	if err != nil {
		return provider.Offer{}, err
	}
	cost, err := r.reqInt("monthlyCostInCent")
	if err != nil {
		return provider.Offer{}, err
	}
	duration, err := r.reqInt("durationInMonths")
	if err != nil {
		return provider.Offer{}, err
	}
	after, err := r.optInt("afterTwoYearsMonthlyCost")
	if err != nil {
		return provider.Offer{}, err
	}
	limit, err := r.optInt("limitFrom")
	if err != nil {
		return provider.Offer{}, err
	}
	maxAge, err := r.optInt("maxAge")
	if err != nil {
		return provider.Offer{}, err
	}
	voucher, err := r.optFloat("voucherValue")
	if err != nil {
		return provider.Offer{}, err
	}

	o := provider.Offer{
		Provider:             provider.ByteMe,
		Name:                 r.get("providerName"),
		SpeedMbps:            speed,
		CostEUR:              provider.Cents(int64(cost)),
		DurationMonths:       duration,
		ConnectionType:       strings.ToLower(r.get("connectionType")),
		InstallationIncluded: strings.EqualFold(r.get("installationService"), "true"),
		MaxAge:               maxAge,
		LimitFromGB:          limit,
	}
	if id := r.get("productId"); id != "" {
		o.ProductID = provider.Ptr(id)
	}
	if tv := r.get("tv"); tv != "" {
		o.TV = provider.Ptr(tv)
	}
	if after != nil {
		o.AfterTwoYearsEUR = provider.Ptr(provider.Cents(int64(*after)))
	}
	if voucher != nil {
		months := provider.DefaultPromoMonths
		o.PromoDurationMonths = provider.Ptr(months)
		if r.get("voucherType") == "percentage" {
			o.VoucherPercent = provider.Ptr(*voucher)
			o.PromoPriceEUR = provider.Ptr(provider.PercentPromo(o.CostEUR, *voucher, nil, months))
		} else {
			fixed := provider.Cents(int64(math.Round(*voucher)))
			o.VoucherFixedEUR = provider.Ptr(fixed)
			o.PromoPriceEUR = provider.Ptr(provider.FixedPromo(o.CostEUR, fixed, months))
		}
	}
	return o, nil
}
