package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/evanhutnik/geocode-proxy/internal/common"
	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize caps how much of a provider response is read.
	MaxResponseSize = 4 << 20
)

type ClientOption func(*Client)

func HTTPClientOption(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// TimeoutOption bounds a single lookup. A provider-specific timeout from its config wins.
func TimeoutOption(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func LoggerOption(logger *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client performs lookups against one configured geocoding provider.
type Client struct {
	cfg        t.ProviderConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

func New(cfg t.ProviderConfig, opts ...ClientOption) *Client {
	if cfg.Name == "" {
		panic("Missing name in provider client")
	}

	creds := make(map[string]string, len(cfg.Credentials))
	for k, v := range cfg.Credentials {
		creds[k] = v
	}
	cfg.Credentials = creds

	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Timeout > 0 {
		c.timeout = cfg.Timeout
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

func (c *Client) Name() string {
	return c.cfg.Name
}

// Lookup geocodes address against this provider. Only a coordinate path that cannot apply
// to the response shape is returned as an error; every other failure is an Outcome.
func (c *Client) Lookup(ctx context.Context, address string) (t.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warnw("rate limit wait aborted", "provider", c.cfg.Name, "error", err.Error())
			return t.Unavailable(c.cfg.Name, http.StatusNotFound), nil
		}
	}

	reqURL, err := c.requestURL(address)
	if err != nil {
		c.logger.Warnw(err.Error(), "provider", c.cfg.Name, "action", "Lookup")
		return t.Unavailable(c.cfg.Name, http.StatusNotFound), nil
	}

	resp, err := common.Get(ctx, c.httpClient, reqURL, c.cfg.Name)
	if err != nil {
		c.logger.Warnw(err.Error(), "provider", c.cfg.Name, "action", "Lookup")
		var statusErr *common.StatusError
		if errors.As(err, &statusErr) {
			return t.UpstreamError(c.cfg.Name, statusErr.Code), nil
		}
		return t.Unavailable(c.cfg.Name, http.StatusNotFound), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		c.logger.Warnw(fmt.Sprintf("error reading %v response body: %s", c.cfg.Name, err.Error()),
			"provider", c.cfg.Name, "action", "Lookup")
		return t.Unavailable(c.cfg.Name, http.StatusNotFound), nil
	}
	if len(body) > MaxResponseSize {
		c.logger.Warnw(fmt.Sprintf("%v response body exceeds %d bytes", c.cfg.Name, MaxResponseSize),
			"provider", c.cfg.Name, "action", "Lookup")
		return t.UpstreamError(c.cfg.Name, http.StatusBadGateway), nil
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		c.logger.Warnw(fmt.Sprintf("error unmarshalling response from %v: %s", c.cfg.Name, err.Error()),
			"provider", c.cfg.Name, "action", "Lookup")
		return t.UpstreamError(c.cfg.Name, http.StatusBadGateway), nil
	}

	coords, err := extract(doc, c.cfg.Path)
	switch {
	case errors.Is(err, errNoData):
		return t.NotFound(c.cfg.Name), nil
	case err != nil:
		return t.Outcome{}, fmt.Errorf("provider %v coordinate path %v: %w", c.cfg.Name, c.cfg.Path, err)
	}
	return t.Success(c.cfg.Name, coords), nil
}

// requestURL merges the credential params and the address into the endpoint template's
// existing query string.
func (c *Client) requestURL(address string) (string, error) {
	req, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse %v base url %s: %s", c.cfg.Name, c.cfg.BaseURL, err.Error())
	}
	if req.Scheme == "" || req.Host == "" {
		return "", fmt.Errorf("invalid %v base url %q", c.cfg.Name, c.cfg.BaseURL)
	}

	q := req.Query()
	for k, v := range c.cfg.Credentials {
		q.Set(k, v)
	}
	q.Set(c.cfg.AddressParam, address)
	req.RawQuery = q.Encode()
	return req.String(), nil
}
