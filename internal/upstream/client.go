// Package upstream fetches dataset files and directory manifests from
// the GitHub-hosted data repository. Files come from the raw content
// host; manifests come from the repository contents API.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/raidtools/gamedata-api/internal/metrics"
	"github.com/raidtools/gamedata-api/internal/version"
)

// ErrNotFound reports that the upstream answered 404 for the requested
// file or directory.
var ErrNotFound = errors.New("not found")

// StatusError reports a non-404 upstream failure.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: unexpected status %d", e.URL, e.Status)
}

// Client talks to the data repository over HTTP. It is safe for
// concurrent use.
type Client struct {
	contentBase string
	listingBase string
	branch      string
	userAgent   string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithUserAgent overrides the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithToken authenticates contents-API requests with a GitHub token,
// raising the rate limit from 60 to 5000 requests per hour. An empty
// token leaves the client anonymous.
func WithToken(token string) Option {
	return func(c *Client) {
		if token == "" {
			return
		}
		c.httpClient = &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   c.httpClient.Transport,
			},
			Timeout: c.httpClient.Timeout,
		}
	}
}

// New returns a client for the data repository. contentBase serves raw
// files, listingBase is the contents API root, and branch selects the
// ref for directory listings. Requests carry no client-side timeout;
// callers bound them through ctx.
func New(contentBase, listingBase, branch string, opts ...Option) *Client {
	c := &Client{
		contentBase: strings.TrimSuffix(contentBase, "/"),
		listingBase: strings.TrimSuffix(listingBase, "/"),
		branch:      branch,
		userAgent:   "gamedata-api/" + version.Version,
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FileURL returns the raw-content URL for a dataset file. path is the
// repository-relative path without the .json extension.
func (c *Client) FileURL(path string) string {
	return fmt.Sprintf("%s/%s.json", c.contentBase, path)
}

// ListingURL returns the contents-API URL for a dataset directory.
func (c *Client) ListingURL(dir string) string {
	return fmt.Sprintf("%s/%s?ref=%s", c.listingBase, dir, c.branch)
}

// Fetch retrieves url and returns the raw response body. A 404 maps to
// ErrNotFound; any other non-200 status maps to a StatusError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.UpstreamRequests.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("fetch %s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	metrics.UpstreamRequests.WithLabelValues("ok").Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
