// Package config loads process settings from the environment and the provider definitions
// from the services and secrets files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evanhutnik/geocode-proxy/internal/cache"
	"github.com/evanhutnik/geocode-proxy/internal/provider"
	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingSecret   = errors.New("missing secrets for provider")
	ErrInvalidProvider = errors.New("invalid provider definition")
)

type Config struct {
	Server          string
	Port            int
	ServicesFile    string
	SecretsFile     string
	Primary         string
	CacheSize       int
	ProviderTimeout time.Duration
	RedisAddress    string
	RedisTTL        time.Duration
	Env             string
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// FromEnv reads GEOPROXY_* variables, loading a .env file first when one exists.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server:          getenv("GEOPROXY_SERVER", "0.0.0.0"),
		Port:            getint("GEOPROXY_PORT", 8088),
		ServicesFile:    getenv("GEOPROXY_SERVICES", "services.json"),
		SecretsFile:     getenv("GEOPROXY_SECRETS", "services.secrets.json"),
		Primary:         os.Getenv("GEOPROXY_PRIMARY"),
		CacheSize:       getint("GEOPROXY_CACHE_SIZE", cache.DefaultCapacity),
		ProviderTimeout: getduration("GEOPROXY_PROVIDER_TIMEOUT", provider.DefaultTimeout),
		RedisAddress:    os.Getenv("GEOPROXY_REDIS_ADDRESS"),
		RedisTTL:        getduration("GEOPROXY_REDIS_TTL", cache.DefaultRedisTTL),
		Env:             getenv("GEOPROXY_ENV", "production"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getduration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

type servicesFile struct {
	Primary  string         `json:"primary" yaml:"primary"`
	Services []serviceEntry `json:"services" yaml:"services"`
}

type serviceEntry struct {
	Name             string        `json:"name" yaml:"name"`
	BaseURL          string        `json:"base_url" yaml:"base_url"`
	AddressQueryName string        `json:"address_query_name" yaml:"address_query_name"`
	CoordObjKeys     []interface{} `json:"coord_obj_keys" yaml:"coord_obj_keys"`
	Primary          bool          `json:"primary" yaml:"primary"`
	Timeout          string        `json:"timeout" yaml:"timeout"`
	RateLimit        float64       `json:"rate_limit" yaml:"rate_limit"`
	RateBurst        int           `json:"rate_burst" yaml:"rate_burst"`
}

// Providers is the validated provider definitions in configuration order, plus the primary
// named by the services file, if any.
type Providers struct {
	Primary string
	Configs []t.ProviderConfig
}

func LoadProviders(servicesPath, secretsPath string) (*Providers, error) {
	services, err := os.ReadFile(servicesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}
	secrets, err := os.ReadFile(secretsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var sf servicesFile
	if err := decode(servicesPath, services, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse services file %s: %w", servicesPath, err)
	}
	var sec map[string]map[string]string
	if err := decode(secretsPath, secrets, &sec); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file %s: %w", secretsPath, err)
	}
	return build(sf, sec)
}

// decode parses .json files with encoding/json and everything else as YAML.
func decode(path string, data []byte, v interface{}) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

func build(sf servicesFile, secrets map[string]map[string]string) (*Providers, error) {
	out := &Providers{Primary: sf.Primary}
	seen := make(map[string]bool, len(sf.Services))

	for i, s := range sf.Services {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: service %d has no name", ErrInvalidProvider, i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidProvider, s.Name)
		}
		seen[s.Name] = true

		if s.BaseURL == "" || s.AddressQueryName == "" {
			return nil, fmt.Errorf("%w: %q needs base_url and address_query_name", ErrInvalidProvider, s.Name)
		}
		path, err := t.ParsePath(s.CoordObjKeys)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidProvider, s.Name, err)
		}
		var timeout time.Duration
		if s.Timeout != "" {
			if timeout, err = time.ParseDuration(s.Timeout); err != nil {
				return nil, fmt.Errorf("%w: %q timeout: %s", ErrInvalidProvider, s.Name, err.Error())
			}
		}
		creds, ok := secrets[s.Name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingSecret, s.Name)
		}

		out.Configs = append(out.Configs, t.ProviderConfig{
			Name:         s.Name,
			BaseURL:      s.BaseURL,
			AddressParam: s.AddressQueryName,
			Path:         path,
			Credentials:  creds,
			Primary:      s.Primary,
			Timeout:      timeout,
			RateLimit:    s.RateLimit,
			RateBurst:    s.RateBurst,
		})
	}

	if len(out.Configs) < 2 {
		return nil, fmt.Errorf("%w: at least two providers are required, got %d", ErrInvalidProvider, len(out.Configs))
	}
	return out, nil
}
