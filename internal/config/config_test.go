package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const servicesJSON = `{
	"primary": "here",
	"services": [
		{
			"name": "google",
			"base_url": "https://maps.googleapis.com/maps/api/geocode/json",
			"address_query_name": "address",
			"coord_obj_keys": ["results", 0, "geometry", "location", ["lat", "lng"]]
		},
		{
			"name": "here",
			"base_url": "https://geocoder.cit.api.here.com/6.2/geocode.json",
			"address_query_name": "searchtext",
			"coord_obj_keys": ["Response", "View", 0, "Result", 0, "Location", "DisplayPosition", ["Latitude", "Longitude"]],
			"timeout": "3s"
		}
	]
}`

const secretsJSON = `{"google": {"key": "g-key"}, "here": {"app_id": "id", "app_code": "code"}}`

const servicesYAML = `
services:
  - name: google
    base_url: https://maps.googleapis.com/maps/api/geocode/json
    address_query_name: address
    coord_obj_keys: [results, 0, geometry, location, [lat, lng]]
  - name: osm
    base_url: https://nominatim.openstreetmap.org/search?format=json
    address_query_name: q
    coord_obj_keys: [0, [lat, lon]]
    primary: true
    rate_limit: 1
    rate_burst: 2
`

const secretsYAML = `
google:
  key: g-key
osm: {}
`

func writeFiles(tb testing.TB, servicesName, services, secretsName, secrets string) (string, string) {
	tb.Helper()
	dir := tb.TempDir()
	sp := filepath.Join(dir, servicesName)
	kp := filepath.Join(dir, secretsName)
	require.NoError(tb, os.WriteFile(sp, []byte(services), 0o600))
	require.NoError(tb, os.WriteFile(kp, []byte(secrets), 0o600))
	return sp, kp
}

func TestLoadProvidersJSON(test *testing.T) {
	sp, kp := writeFiles(test, "services.json", servicesJSON, "services.secrets.json", secretsJSON)

	p, err := LoadProviders(sp, kp)
	require.NoError(test, err)

	assert.Equal(test, "here", p.Primary)
	require.Len(test, p.Configs, 2)

	google := p.Configs[0]
	assert.Equal(test, "google", google.Name)
	assert.Equal(test, "address", google.AddressParam)
	assert.Equal(test, map[string]string{"key": "g-key"}, google.Credentials)
	assert.Equal(test, "results.0.geometry.location.[lat,lng]", google.Path.String())

	here := p.Configs[1]
	assert.Equal(test, 3*time.Second, here.Timeout)
	assert.Equal(test, t.Index(0), here.Path.Steps[2])
}

func TestLoadProvidersYAML(test *testing.T) {
	sp, kp := writeFiles(test, "services.yaml", servicesYAML, "secrets.yaml", secretsYAML)

	p, err := LoadProviders(sp, kp)
	require.NoError(test, err)

	require.Len(test, p.Configs, 2)
	osm := p.Configs[1]
	assert.True(test, osm.Primary)
	assert.Equal(test, 1.0, osm.RateLimit)
	assert.Equal(test, 2, osm.RateBurst)
	assert.Empty(test, osm.Credentials)
	assert.Equal(test, "0.[lat,lon]", osm.Path.String())
}

func TestLoadProvidersErrors(test *testing.T) {
	tests := []struct {
		name     string
		services string
		secrets  string
		wantErr  error
	}{
		{
			name:     "missing secret",
			services: servicesJSON,
			secrets:  `{"google": {"key": "g-key"}}`,
			wantErr:  ErrMissingSecret,
		},
		{
			name: "single provider",
			services: `{"services": [{"name": "google", "base_url": "https://g", "address_query_name": "address",
				"coord_obj_keys": [["lat", "lng"]]}]}`,
			secrets: secretsJSON,
			wantErr: ErrInvalidProvider,
		},
		{
			name: "duplicate names",
			services: `{"services": [
				{"name": "google", "base_url": "https://g", "address_query_name": "a", "coord_obj_keys": [["lat", "lng"]]},
				{"name": "google", "base_url": "https://g", "address_query_name": "a", "coord_obj_keys": [["lat", "lng"]]}]}`,
			secrets: secretsJSON,
			wantErr: ErrInvalidProvider,
		},
		{
			name: "bad coordinate path",
			services: `{"services": [
				{"name": "google", "base_url": "https://g", "address_query_name": "a", "coord_obj_keys": ["lat"]},
				{"name": "here", "base_url": "https://h", "address_query_name": "a", "coord_obj_keys": [["lat", "lng"]]}]}`,
			secrets: secretsJSON,
			wantErr: t.ErrMalformedProviderConfig,
		},
	}

	for _, tt := range tests {
		test.Run(tt.name, func(test *testing.T) {
			sp, kp := writeFiles(test, "services.json", tt.services, "secrets.json", tt.secrets)
			_, err := LoadProviders(sp, kp)
			require.Error(test, err)
			assert.True(test, errors.Is(err, tt.wantErr), err.Error())
		})
	}
}

func TestLoadProvidersMissingFile(test *testing.T) {
	_, err := LoadProviders(filepath.Join(test.TempDir(), "nope.json"), "secrets.json")
	require.Error(test, err)
}

func TestFromEnv(test *testing.T) {
	test.Setenv("GEOPROXY_PORT", "9000")
	test.Setenv("GEOPROXY_PRIMARY", "here")
	test.Setenv("GEOPROXY_PROVIDER_TIMEOUT", "2s")
	test.Setenv("GEOPROXY_CACHE_SIZE", "not a number")

	c := FromEnv()
	assert.Equal(test, "0.0.0.0:9000", c.Addr())
	assert.Equal(test, "here", c.Primary)
	assert.Equal(test, 2*time.Second, c.ProviderTimeout)
	assert.Equal(test, 100, c.CacheSize)
}
