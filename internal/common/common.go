package common

import (
	"context"
	"fmt"
	"net/http"
)

// StatusError is returned when a provider answered with a non-2xx status.
type StatusError struct {
	Name string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error code %v returned from %v", e.Code, e.Name)
}

// Get issues exactly one GET against a provider. Transport failures are returned as plain
// wrapped errors, reachable-but-failing providers as *StatusError.
func Get(ctx context.Context, client *http.Client, rawURL string, name string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %v api request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error on %v api request: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Name: name, Code: resp.StatusCode}
	}
	return resp, nil
}
