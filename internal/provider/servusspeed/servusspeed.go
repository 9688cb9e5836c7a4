package servusspeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
	"offeragg/internal/httpx"
	"offeragg/internal/provider"
)

const (
	defaultBaseURL = "https://servus-speed.gendev7.check24.fun"
	// detailConcurrency bounds the number of detail requests in flight.
	detailConcurrency = 5
)

// Client lists the products available at an address and then loads each
// product's details.
type Client struct {
	baseURL  string
	user     string
	password string
	http     httpx.Doer
	log      *slog.Logger
	workers  int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithHTTPClient sets the transport.
func WithHTTPClient(d httpx.Doer) Option { return func(c *Client) { c.http = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// WithDetailConcurrency overrides how many detail requests run at once.
func WithDetailConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

func New(user, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		user:     user,
		password: password,
		http:     http.DefaultClient,
		log:      slog.Default(),
		workers:  detailConcurrency,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ID() provider.ID { return provider.ServusSpeed }

type address struct {
	Strasse      string `json:"strasse"`
	Hausnummer   string `json:"hausnummer"`
	Postleitzahl string `json:"postleitzahl"`
	Stadt        string `json:"stadt"`
	Land         string `json:"land"`
}

type envelope struct {
	Address address `json:"address"`
}

type available struct {
	AvailableProducts []string `json:"availableProducts"`
}

type detail struct {
	Product *struct {
		ProviderName string `json:"providerName"`
		ProductInfo  struct {
			Speed                    int     `json:"speed"`
			ContractDurationInMonths int     `json:"contractDurationInMonths"`
			ConnectionType           string  `json:"connectionType"`
			TV                       *string `json:"tv"`
			LimitFrom                *int    `json:"limitFrom"`
			MaxAge                   *int    `json:"maxAge"`
		} `json:"productInfo"`
		PricingDetails struct {
			MonthlyCostInCent   *int64 `json:"monthlyCostInCent"`
			InstallationService bool   `json:"installationService"`
		} `json:"pricingDetails"`
		Discount *int64 `json:"discount"`
	} `json:"servusSpeedProduct"`
}

// Fetch resolves the product ids for addr and loads their details.
// Offers keep the order of the id list.
func (c *Client) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	env := envelope{Address: address{
		Strasse:      addr.Street,
		Hausnummer:   addr.HouseNumber,
		Postleitzahl: addr.PostalCode,
		Stadt:        addr.City,
		Land:         provider.CountryCode,
	}}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	var ids available
	if err := c.post(ctx, "/api/external/available-products", body, &ids); err != nil {
		return nil, fmt.Errorf("servusspeed: available products: %w", err)
	}

	details := make([]*detail, len(ids.AvailableProducts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, id := range ids.AvailableProducts {
		g.Go(func() error {
			var d detail
			if err := c.post(gctx, "/api/external/product-details/"+url.PathEscape(id), body, &d); err != nil {
				return fmt.Errorf("servusspeed: product %s: %w", id, err)
			}
			details[i] = &d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]provider.Offer, 0, len(details))
	for i, d := range details {
		id := ids.AvailableProducts[i]
		o, ok := toOffer(id, d)
		if !ok {
			c.log.Warn("servusspeed: skip malformed product", "product_id", id)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func toOffer(id string, d *detail) (provider.Offer, bool) {
	if d == nil || d.Product == nil {
		return provider.Offer{}, false
	}
	p := d.Product
	info, pricing := p.ProductInfo, p.PricingDetails
	if pricing.MonthlyCostInCent == nil || info.Speed <= 0 {
		return provider.Offer{}, false
	}
	o := provider.Offer{
		Provider:             provider.ServusSpeed,
		ProductID:            provider.Ptr(id),
		Name:                 p.ProviderName,
		SpeedMbps:            info.Speed,
		CostEUR:              provider.Cents(*pricing.MonthlyCostInCent),
		DurationMonths:       info.ContractDurationInMonths,
		ConnectionType:       strings.ToLower(info.ConnectionType),
		InstallationIncluded: pricing.InstallationService,
		TV:                   info.TV,
		MaxAge:               info.MaxAge,
		LimitFromGB:          info.LimitFrom,
	}
	if p.Discount != nil && *p.Discount > 0 {
		fixed := provider.Cents(*p.Discount)
		months := provider.DefaultPromoMonths
		o.VoucherFixedEUR = provider.Ptr(fixed)
		o.PromoDurationMonths = provider.Ptr(months)
		o.PromoPriceEUR = provider.Ptr(provider.FixedPromo(o.CostEUR, fixed, months))
	}
	return o, true
}
