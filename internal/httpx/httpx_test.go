package httpx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"offeragg/internal/httpx"
)

func TestClient_DefaultHeaders(t *testing.T) {
	t.Parallel()

	// Arrange: an upstream that echoes the headers it saw
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "offeragg/1.0", r.Header.Get("User-Agent"))
		require.Equal(t, "bar", r.Header.Get("X-Foo"))
		require.Equal(t, "explicit", r.Header.Get("X-Keep"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := httpx.New(2 * time.Second)
	c.Headers = map[string]string{"X-Foo": "bar", "X-Keep": "default"}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("X-Keep", "explicit")

	// Act
	resp, err := c.Do(req)

	// Assert
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/missing":
			http.Error(w, "no such product", http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)

	get := func(path string) *http.Response {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	require.NoError(t, httpx.CheckStatus(get("/ok")))

	err := httpx.CheckStatus(get("/missing"))
	var se *httpx.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.Code)
	require.True(t, se.Permanent())
	require.Contains(t, se.Error(), "no such product")

	err = httpx.CheckStatus(get("/fail"))
	require.True(t, errors.As(err, &se))
	require.False(t, se.Permanent())
}
