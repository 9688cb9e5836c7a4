package verbyndich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"offeragg/internal/httpx"
	"offeragg/internal/provider"
)

const (
	defaultBaseURL  = "https://verbyndich.gendev7.check24.fun"
	defaultMaxPages = 500
)

// Client pages through VerbynDich offers, one offer per page.
type Client struct {
	baseURL  string
	apiKey   string
	http     httpx.Doer
	log      *slog.Logger
	maxPages int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithHTTPClient sets the transport.
func WithHTTPClient(d httpx.Doer) Option { return func(c *Client) { c.http = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// WithMaxPages bounds pagination in case the upstream never reports a last page.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		http:     http.DefaultClient,
		log:      slog.Default(),
		maxPages: defaultMaxPages,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ID() provider.ID { return provider.VerbynDich }

type page struct {
	Product     string `json:"product"`
	Description string `json:"description"`
	Last        bool   `json:"last"`
	Valid       bool   `json:"valid"`
}

// Fetch walks pages from 0 until the upstream marks one as last.
func (c *Client) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	a := addr.ASCII()
	body := strings.Join([]string{a.Street, a.HouseNumber, a.City, a.PostalCode}, ";")

	out := make([]provider.Offer, 0, 16)
	for n := 0; n < c.maxPages; n++ {
		p, err := c.page(ctx, body, n)
		if err != nil {
			return nil, fmt.Errorf("verbyndich: page %d: %w", n, err)
		}
		if p.Valid {
			if o, ok := toOffer(p); ok {
				out = append(out, o)
			} else {
				c.log.Warn("verbyndich: skip unparsable offer", "page", n, "product", p.Product)
			}
		}
		if p.Last {
			return out, nil
		}
	}
	c.log.Warn("verbyndich: page limit reached", "max_pages", c.maxPages)
	return out, nil
}

func (c *Client) page(ctx context.Context, body string, n int) (page, error) {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("page", strconv.Itoa(n))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check24/data?"+q.Encode(), strings.NewReader(body))
	if err != nil {
		return page{}, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return page{}, err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return page{}, err
	}
	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return page{}, fmt.Errorf("decode: %w", err)
	}
	return p, nil
}

// toOffer needs at least a price and a speed from the description.
func toOffer(p page) (provider.Offer, bool) {
	d := ParseDescription(p.Description)
	if d.CostEUR == nil || d.SpeedMbps == nil {
		return provider.Offer{}, false
	}
	o := provider.Offer{
		Provider:         provider.VerbynDich,
		Name:             strings.TrimSpace(p.Product),
		SpeedMbps:        *d.SpeedMbps,
		CostEUR:          *d.CostEUR,
		TV:               d.TV,
		MaxAge:           d.MaxAge,
		LimitFromGB:      d.LimitFromGB,
		AfterTwoYearsEUR: d.AfterTwoYearsEUR,
	}
	if d.ConnectionType != nil {
		o.ConnectionType = *d.ConnectionType
	}
	if d.DurationMonths != nil {
		o.DurationMonths = *d.DurationMonths
	}

	months := provider.DefaultPromoMonths
	if d.PromoMonths != nil && *d.PromoMonths > 0 {
		months = *d.PromoMonths
	}
	switch {
	case d.VoucherPercent != nil:
		o.VoucherPercent = d.VoucherPercent
		o.PromoDurationMonths = provider.Ptr(months)
		o.PromoPriceEUR = provider.Ptr(provider.PercentPromo(o.CostEUR, *d.VoucherPercent, d.MaxDiscountEUR, months))
	case d.VoucherFixedEUR != nil:
		o.VoucherFixedEUR = d.VoucherFixedEUR
		o.PromoDurationMonths = provider.Ptr(months)
		o.PromoPriceEUR = provider.Ptr(provider.FixedPromo(o.CostEUR, *d.VoucherFixedEUR, months))
	}
	return o, true
}
