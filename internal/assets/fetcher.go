package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is a fetched asset body and its declared content type.
// The caller must close Body.
type Response struct {
	ContentType string
	Body        io.ReadCloser
}

// Fetcher retrieves remote assets.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher fetches assets with a plain GET.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

// Fetch implements Fetcher. Any status other than 200 is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return &Response{ContentType: resp.Header.Get("Content-Type"), Body: resp.Body}, nil
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code %d", e.URL, e.Code)
}

// Fault reports an asset that could not be made available locally.
type Fault struct {
	Kind Kind
	ID   string
	URL  string
	Err  error
}

func (e *Fault) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("asset fault (%s %s): %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("asset fault (%s %s): %v", e.Kind, e.ID, e.Err)
}

func (e *Fault) Unwrap() error {
	return e.Err
}

// IsFault returns true if err wraps an asset *Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
