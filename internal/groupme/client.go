// Package groupme is a small client for the GroupMe v3 REST API.
//
// It covers what archiving needs: group lookup with roster, backward
// message paging, and listing of groups and direct-message chats. All
// requests share one token-bucket rate limiter.
package groupme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public v3 API root.
const DefaultBaseURL = "https://api.groupme.com/v3"

// errNotModified is returned by get for a 304 response.
var errNotModified = errors.New("groupme: not modified")

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the GroupMe API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new GroupMe client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// APIError is returned for any non-success status other than 304.
type APIError struct {
	Path   string
	Status int
	Errors []string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("groupme: GET %s: status %d: %s", e.Path, e.Status, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("groupme: GET %s: status %d", e.Path, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// envelope is the wrapper around every API response body.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Meta     struct {
		Code   int      `json:"code"`
		Errors []string `json:"errors"`
	} `json:"meta"`
}

// get performs a GET on path and decodes the envelope's response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Token", c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The error text carries the URL; keep the token out of logs.
		return fmt.Errorf("failed to send request to %s: %w", path, unwrapURLError(err))
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode == http.StatusNotModified {
		return errNotModified
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Path: path, Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Errors = env.Meta.Errors
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, decodeErr)
	}
	if out == nil || len(env.Response) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
