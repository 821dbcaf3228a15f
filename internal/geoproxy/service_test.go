package geoproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/evanhutnik/geocode-proxy/internal/cache"
	"github.com/evanhutnik/geocode-proxy/internal/geocoder"
	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const address = "San Francisco, CA"

type stubProvider struct {
	name    string
	outcome t.Outcome
	err     error
	calls   int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Lookup(ctx context.Context, address string) (t.Outcome, error) {
	p.calls++
	return p.outcome, p.err
}

func newService(tb testing.TB, primary, secondary *stubProvider, opts ...ServiceOption) *Service {
	tb.Helper()
	g, err := geocoder.New([]geocoder.Provider{primary, secondary})
	require.NoError(tb, err)
	return New(g, opts...)
}

func get(s *Service, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func geocodeURL(addr string) string {
	return "/?" + url.Values{"address": {addr}}.Encode()
}

func TestGeocodeHandlerSuccess(test *testing.T) {
	google := &stubProvider{name: "google", outcome: t.Success("google", t.Coordinates{Latitude: 37.7749295, Longitude: -122.4194155})}
	here := &stubProvider{name: "here", outcome: t.Success("here", t.Coordinates{Latitude: 37.77713, Longitude: -122.41964})}

	rec := get(newService(test, google, here), geocodeURL(address))

	assert.Equal(test, http.StatusOK, rec.Code)
	assert.JSONEq(test, `{"Latitude": 37.7749295, "Longitude": -122.4194155}`, rec.Body.String())
	assert.Equal(test, "google", rec.Header().Get("X-Geocode-Provider"))
	assert.NotEmpty(test, rec.Header().Get("X-Request-Id"))
	assert.Equal(test, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(test, 0, here.calls)
}

func TestGeocodeHandlerFailover(test *testing.T) {
	google := &stubProvider{name: "google", outcome: t.Unavailable("google", http.StatusNotFound)}
	here := &stubProvider{name: "here", outcome: t.Success("here", t.Coordinates{Latitude: 37.77713, Longitude: -122.41964})}

	rec := get(newService(test, google, here), geocodeURL(address))

	assert.Equal(test, http.StatusOK, rec.Code)
	assert.JSONEq(test, `{"Latitude": 37.77713, "Longitude": -122.41964}`, rec.Body.String())
	assert.Equal(test, "here", rec.Header().Get("X-Geocode-Provider"))
}

func TestGeocodeHandlerFailures(test *testing.T) {
	tests := []struct {
		name      string
		target    string
		primary   t.Outcome
		secondary t.Outcome
		wantCode  int
		wantMsg   string
		wantCalls int
	}{
		{
			name:     "empty address",
			target:   "/?address=",
			wantCode: http.StatusBadRequest,
			wantMsg:  msgBadRequest,
		},
		{
			name:     "missing address",
			target:   "/",
			wantCode: http.StatusBadRequest,
			wantMsg:  msgBadRequest,
		},
		{
			name:      "both unavailable",
			target:    geocodeURL(address),
			primary:   t.Unavailable("google", http.StatusNotFound),
			secondary: t.Unavailable("here", http.StatusNotFound),
			wantCode:  http.StatusServiceUnavailable,
			wantMsg:   msgUnavailable,
			wantCalls: 1,
		},
		{
			name:      "not found",
			target:    geocodeURL("/"),
			primary:   t.NotFound("google"),
			secondary: t.NotFound("here"),
			wantCode:  http.StatusNotFound,
			wantMsg:   msgNotFound,
			wantCalls: 1,
		},
		{
			name:      "last provider unreachable",
			target:    geocodeURL(address),
			primary:   t.NotFound("google"),
			secondary: t.Unavailable("here", http.StatusNotFound),
			wantCode:  http.StatusNotFound,
			wantMsg:   msgNotFound,
			wantCalls: 1,
		},
		{
			name:      "upstream status passthrough",
			target:    geocodeURL(address),
			primary:   t.NotFound("google"),
			secondary: t.UpstreamError("here", http.StatusTooManyRequests),
			wantCode:  http.StatusTooManyRequests,
			wantMsg:   "Cannot process request, status 429.",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		test.Run(tt.name, func(test *testing.T) {
			google := &stubProvider{name: "google", outcome: tt.primary}
			here := &stubProvider{name: "here", outcome: tt.secondary}

			rec := get(newService(test, google, here), tt.target)

			assert.Equal(test, tt.wantCode, rec.Code)
			var body ErrorResponse
			require.NoError(test, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(test, tt.wantMsg, body.Error)
			assert.Equal(test, tt.wantCalls, google.calls)
			assert.Equal(test, tt.wantCalls, here.calls)
		})
	}
}

func TestGeocodeHandlerMalformedConfig(test *testing.T) {
	google := &stubProvider{name: "google", err: fmt.Errorf("path: %w", t.ErrMalformedProviderConfig)}
	here := &stubProvider{name: "here", outcome: t.Success("here", t.Coordinates{})}

	rec := get(newService(test, google, here), geocodeURL(address))

	assert.Equal(test, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(test, `{"error": "`+msgInternal+`"}`, rec.Body.String())
	assert.Equal(test, 0, here.calls)
}

func TestGeocodeHandlerUsesCache(test *testing.T) {
	google := &stubProvider{name: "google", outcome: t.Success("google", t.Coordinates{Latitude: 1, Longitude: 2})}
	here := &stubProvider{name: "here", outcome: t.NotFound("here")}
	s := newService(test, google, here, CacheOption(cache.NewFIFO(10)))

	for i := 0; i < 3; i++ {
		rec := get(s, geocodeURL(address))
		assert.Equal(test, http.StatusOK, rec.Code)
	}
	assert.Equal(test, 1, google.calls)

	rec := get(s, "/")
	assert.Equal(test, http.StatusBadRequest, rec.Code)
	assert.Equal(test, 1, google.calls)
}

func TestMethodNotAllowed(test *testing.T) {
	s := newService(test, &stubProvider{name: "google"}, &stubProvider{name: "here"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, geocodeURL(address), nil))
	assert.Equal(test, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthHandler(test *testing.T) {
	s := newService(test, &stubProvider{name: "here"}, &stubProvider{name: "google"})

	rec := get(s, "/healthz")
	assert.Equal(test, http.StatusOK, rec.Code)
	assert.JSONEq(test, `{"status": "ok", "providers": ["here", "google"]}`, rec.Body.String())
}
