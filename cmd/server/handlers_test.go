package main

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"offeragg/internal/aggregate"
	"offeragg/internal/filter"
	"offeragg/internal/logger"
	"offeragg/internal/provider"
	"offeragg/internal/provider/providermock"
)

const addrQuery = "street=Hauptstra%C3%9Fe&house_number=5&plz=10115&city=Berlin"

func mockProvider(ctrl *gomock.Controller, id provider.ID, rows []provider.Offer, err error) *providermock.MockProvider {
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().ID().Return(id).AnyTimes()
	p.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(rows, err).AnyTimes()
	return p
}

func newTestServer(t *testing.T, providers ...provider.Provider) *httptest.Server {
	t.Helper()
	s := &server{
		engine:  aggregate.New(providers, aggregate.WithLogger(logger.Discard())),
		log:     logger.Discard(),
		timeout: 5 * time.Second,
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("# metrics\n"))
	})
	srv := httptest.NewServer(s.routes(metrics))
	t.Cleanup(srv.Close)
	return srv
}

func defaultProviders(t *testing.T) []provider.Provider {
	ctrl := gomock.NewController(t)
	return []provider.Provider{
		mockProvider(ctrl, provider.ByteMe, []provider.Offer{
			{Name: "Byte 100", SpeedMbps: 100, CostEUR: 30, ConnectionType: "DSL"},
			{Name: "Byte 500", SpeedMbps: 500, CostEUR: 45, ConnectionType: "FIBER"},
		}, nil),
		mockProvider(ctrl, provider.WebWunder, nil, errors.New("upstream down")),
		mockProvider(ctrl, provider.VerbynDich, []provider.Offer{
			{Name: "Verbyn 1000", SpeedMbps: 1000, CostEUR: 60, ConnectionType: "FIBER"},
		}, nil),
	}
}

func get(t *testing.T, u string) *http.Response {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp := get(t, srv.URL+"/healthz")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestMetricsMountedOutsideJSONChain(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp := get(t, srv.URL+"/metrics")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

func TestOffers_FilterAndSort(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := newTestServer(t, defaultProviders(t)...)

	// Act
	resp := get(t, srv.URL+"/offers?"+addrQuery+"&min_speed=200&sort=speed")

	// Assert: the failing provider is absent, the rest is filtered and sorted
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body offersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 2, body.Count)
	require.Equal(t, "Verbyn 1000", body.Offers[0].Name)
	require.Equal(t, "Byte 500", body.Offers[1].Name)
	require.Equal(t, provider.VerbynDich, body.Offers[0].Provider)
	require.NotNil(t, body.Offers[1].CostFirstYearsEUR)
}

func TestOffers_DefaultSortIsFirstYearsCost(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, defaultProviders(t)...)

	resp := get(t, srv.URL+"/offers?"+addrQuery)

	var body offersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 3, body.Count)
	require.Equal(t, []string{"Byte 100", "Byte 500", "Verbyn 1000"},
		[]string{body.Offers[0].Name, body.Offers[1].Name, body.Offers[2].Name})
}

func TestOffers_BadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, defaultProviders(t)...)

	tests := []struct {
		name  string
		query string
	}{
		{"missing address", "city=Berlin"},
		{"bad integer", addrQuery + "&min_speed=fast"},
		{"negative integer", addrQuery + "&age=-3"},
		{"unknown sort", addrQuery + "&sort=price"},
		{"unknown provider", addrQuery + "&providers=Telekom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, srv.URL+"/offers?"+tt.query)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestOffersStream_NDJSON(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := newTestServer(t, defaultProviders(t)...)

	// Act
	resp := get(t, srv.URL+"/offers/stream?"+addrQuery+"&connection=fiber")

	// Assert: one line per provider, errors reported inline
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	lines := map[provider.ID]streamLine{}
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var l streamLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		lines[l.Provider] = l
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 3)
	require.Len(t, lines[provider.ByteMe].Offers, 1)
	require.Equal(t, "Byte 500", lines[provider.ByteMe].Offers[0].Name)
	require.Empty(t, lines[provider.WebWunder].Offers)
	require.Contains(t, lines[provider.WebWunder].Error, "upstream down")
}

func TestOffers_Gzip(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, defaultProviders(t)...)
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/offers?"+addrQuery, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	var body offersResponse
	require.NoError(t, json.NewDecoder(zr).Decode(&body))
	require.Equal(t, 3, body.Count)
}

func TestProviders(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, defaultProviders(t)...)

	resp := get(t, srv.URL+"/providers")

	var body struct {
		Providers []provider.ID `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, []provider.ID{provider.ByteMe, provider.WebWunder, provider.VerbynDich}, body.Providers)
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	v, err := url.ParseQuery("street=A&houseNumber=1&postal_code=12345&city=B" +
		"&tv=no&unlimited=yes&installation=1&connection=DSL,%20fiber&providers=pingperfect,Servus%20Speed" +
		"&max_duration=24&age=30&sort=cost_later_years")
	require.NoError(t, err)

	q, err := parseQuery(v)

	require.NoError(t, err)
	require.Equal(t, provider.Address{Street: "A", HouseNumber: "1", PostalCode: "12345", City: "B"}, q.addr)
	require.NotNil(t, q.criteria.TV)
	require.False(t, *q.criteria.TV)
	require.True(t, q.criteria.UnlimitedOnly)
	require.True(t, q.criteria.InstallationRequired)
	require.Equal(t, []string{"DSL", "fiber"}, q.criteria.ConnectionTypes)
	require.Equal(t, []provider.ID{provider.PingPerfect, provider.ServusSpeed}, q.criteria.Providers)
	require.Equal(t, 24, *q.criteria.MaxDuration)
	require.Equal(t, 30, *q.criteria.Age)
	require.Nil(t, q.criteria.MinSpeed)
	require.Equal(t, filter.SortAfterTwoYearsCost, q.sort)
}
