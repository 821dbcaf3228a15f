package types

import (
	"errors"
	"net/http"
	"time"
)

// ErrMalformedProviderConfig marks a coordinate path that cannot structurally apply to a
// provider response. It is a configuration defect, never a retryable outcome.
var ErrMalformedProviderConfig = errors.New("malformed provider config")

type Coordinates struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

type Status int

const (
	StatusSuccess Status = iota
	StatusClientError
	StatusNotFound
	StatusUnavailable
	StatusUpstreamError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusClientError:
		return "client_error"
	case StatusNotFound:
		return "not_found"
	case StatusUnavailable:
		return "upstream_unavailable"
	case StatusUpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// Outcome is the normalized result of one lookup attempt. Coordinates is set iff Status is
// StatusSuccess. Code is the HTTP status the outcome maps to.
type Outcome struct {
	Status      Status
	Code        int
	Coordinates *Coordinates
	Provider    string
}

func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

func Success(provider string, coords Coordinates) Outcome {
	return Outcome{Status: StatusSuccess, Code: http.StatusOK, Coordinates: &coords, Provider: provider}
}

func ClientError() Outcome {
	return Outcome{Status: StatusClientError, Code: http.StatusBadRequest}
}

func NotFound(provider string) Outcome {
	return Outcome{Status: StatusNotFound, Code: http.StatusNotFound, Provider: provider}
}

// Unavailable is a network level failure. A single provider reports it with 404, the
// aggregate of every provider being unreachable reports it with 503.
func Unavailable(provider string, code int) Outcome {
	return Outcome{Status: StatusUnavailable, Code: code, Provider: provider}
}

func UpstreamError(provider string, code int) Outcome {
	return Outcome{Status: StatusUpstreamError, Code: code, Provider: provider}
}

// ProviderConfig describes one external geocoding service. It is not modified after the
// loader builds it.
type ProviderConfig struct {
	Name         string
	BaseURL      string
	AddressParam string
	Path         Path
	Credentials  map[string]string
	Primary      bool
	Timeout      time.Duration
	RateLimit    float64
	RateBurst    int
}
