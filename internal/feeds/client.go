// Package feeds wraps the external data sources the watcher polls: raw
// image feeds, the sunrise-sunset.org API, and NOAA SWPC solar wind
// products. All requests carry a bounded timeout so a stalled feed can
// never hang a run.
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every feed request.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps response bodies; the largest all-sky JPEG is well
// under this.
const maxBodyBytes = 16 << 20

// Client fetches bytes and JSON documents from public feeds.
type Client struct {
	http *http.Client

	testSunURL  string // For testing only; empty in production.
	testSWPCURL string // For testing only; empty in production.
}

// NewClient returns a feed client with the default timeout.
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: DefaultTimeout},
	}
}

// NewClientWithHTTP allows tests to inject a configured http.Client.
func NewClientWithHTTP(hc *http.Client) *Client {
	return &Client{http: hc}
}

// FetchBytes downloads the resource at url. Non-2xx responses are errors.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "aurorawatcher")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}
