// Package geocoder tries an ordered list of geocoding providers, primary first, until one of
// them returns coordinates.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"go.uber.org/zap"
)

var (
	ErrTooFewProviders   = errors.New("at least two geocoding providers are required")
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrUnknownPrimary    = errors.New("primary provider is not configured")
)

// Provider performs one lookup against one external service.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, address string) (t.Outcome, error)
}

type Option func(*Geocoder)

func LoggerOption(logger *zap.SugaredLogger) Option {
	return func(g *Geocoder) {
		g.logger = logger
	}
}

type Geocoder struct {
	providers []Provider
	logger    *zap.SugaredLogger
}

// New keeps providers in the given order; index 0 is the primary.
func New(providers []Provider, opts ...Option) (*Geocoder, error) {
	if len(providers) < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewProviders, len(providers))
	}
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if seen[p.Name()] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProvider, p.Name())
		}
		seen[p.Name()] = true
	}

	g := &Geocoder{
		providers: append([]Provider(nil), providers...),
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Providers returns provider names in the order they are tried.
func (g *Geocoder) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Geocode returns the first successful outcome. When every provider fails it returns the
// last provider's outcome, except that an all-unreachable run is reported with 503. The
// only error is a malformed provider configuration, which stops the run.
func (g *Geocoder) Geocode(ctx context.Context, address string) (t.Outcome, error) {
	if address == "" {
		return t.ClientError(), nil
	}

	var last t.Outcome
	allUnavailable := true
	for i, p := range g.providers {
		start := time.Now()
		outcome, err := p.Lookup(ctx, address)
		if err != nil {
			g.logger.Errorw(err.Error(), "provider", p.Name(), "address", address, "action", "Geocode")
			return t.Outcome{}, err
		}
		g.logger.Debugw("provider lookup",
			"provider", p.Name(), "attempt", i+1, "status", outcome.Status.String(), "latency", time.Since(start))

		if outcome.OK() {
			if i > 0 {
				g.logger.Infow("geocoded by secondary provider",
					"provider", p.Name(), "primary", g.providers[0].Name(), "attempt", i+1)
			}
			return outcome, nil
		}
		if outcome.Status != t.StatusUnavailable {
			allUnavailable = false
		}
		last = outcome
	}

	g.logger.Warnw("all providers failed",
		"address", address, "status", last.Status.String(), "last_provider", last.Provider)
	if allUnavailable {
		return t.Unavailable(last.Provider, http.StatusServiceUnavailable), nil
	}
	return last, nil
}
