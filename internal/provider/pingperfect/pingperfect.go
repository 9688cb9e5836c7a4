package pingperfect

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"offeragg/internal/httpx"
	"offeragg/internal/provider"
)

const defaultBaseURL = "https://pingperfect.gendev7.check24.fun"

// Client queries Ping Perfect with HMAC-signed requests.
type Client struct {
	baseURL  string
	clientID string
	secret   []byte
	http     httpx.Doer
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithHTTPClient sets the transport.
func WithHTTPClient(d httpx.Doer) Option { return func(c *Client) { c.http = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// WithClock sets the time source used for the request timestamp.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(clientID, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		clientID: clientID,
		secret:   []byte(secret),
		http:     http.DefaultClient,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ID() provider.ID { return provider.PingPerfect }

type request struct {
	Street      string `json:"street"`
	PostalCode  string `json:"plz"`
	HouseNumber string `json:"houseNumber"`
	City        string `json:"city"`
	WantsFiber  bool   `json:"wantsFiber"`
}

type product struct {
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
		InstallationService string `json:"installationService"`
	} `json:"pricingDetails"`
}

// Fetch asks for fiber offers, then for all other offers, and returns
// both lists in that order.
func (c *Client) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	out := make([]provider.Offer, 0, 16)
	for _, fiber := range []bool{true, false} {
		ps, err := c.query(ctx, addr, fiber)
		if err != nil {
			return nil, fmt.Errorf("pingperfect: wantsFiber=%t: %w", fiber, err)
		}
		for i, p := range ps {
			o, ok := toOffer(p)
			if !ok {
				c.log.Warn("pingperfect: skip malformed product", "index", i, "wants_fiber", fiber)
				continue
			}
			out = append(out, o)
		}
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, addr provider.Address, fiber bool) ([]product, error) {
	body, err := json.Marshal(request{
		Street:      addr.Street,
		PostalCode:  addr.PostalCode,
		HouseNumber: addr.HouseNumber,
		City:        addr.City,
		WantsFiber:  fiber,
	})
	if err != nil {
		return nil, err
	}
	ts := strconv.FormatInt(c.now().Unix(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internet/angebote/data", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Id", c.clientID)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", Sign(c.secret, ts, body))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, err
	}
	var ps []product
	if err := json.NewDecoder(resp.Body).Decode(&ps); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return ps, nil
}

// Sign returns the hex HMAC-SHA256 of "<ts>:<body>".
func Sign(secret []byte, ts string, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(ts))
	m.Write([]byte{':'})
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func toOffer(p product) (provider.Offer, bool) {
	info, pricing := p.ProductInfo, p.PricingDetails
	if pricing.MonthlyCostInCent == nil || info.Speed <= 0 {
		return provider.Offer{}, false
	}
	o := provider.Offer{
		Provider:             provider.PingPerfect,
		Name:                 p.ProviderName,
		SpeedMbps:            info.Speed,
		CostEUR:              provider.Cents(*pricing.MonthlyCostInCent),
		DurationMonths:       info.ContractDurationInMonths,
		ConnectionType:       strings.ToLower(info.ConnectionType),
		InstallationIncluded: pricing.InstallationService != "no",
		TV:                   info.TV,
	}
	if info.MaxAge != nil && *info.MaxAge > 0 {
		o.MaxAge = info.MaxAge
	}
	if info.LimitFrom != nil && *info.LimitFrom > 0 {
		o.LimitFromGB = info.LimitFrom
	}
	return o, true
}
