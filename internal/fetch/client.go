// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// defaultUserAgent identifies forgeenv to mirrors and CDNs.
	defaultUserAgent = "forgeenv"

	// defaultMaxArchiveBytes is the upper bound on a single archive
	// download (2 GB). Prebuilt toolchains are well under this; the cap
	// protects the cache dir from a misconfigured URL streaming forever.
	defaultMaxArchiveBytes = 2 << 30
)

type (
	// Client fetches archives by URL. It is safe for sequential reuse
	// across provisioning steps; the zero value is not usable, construct
	// with NewClient.
	Client struct {
		httpClient *http.Client
		userAgent  string
		maxBytes   int64
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(f *Client) {
		f.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(f *Client) {
		f.userAgent = ua
	}
}

// WithMaxBytes caps the size of a single download.
func WithMaxBytes(n int64) ClientOption {
	return func(f *Client) {
		f.maxBytes = n
	}
}

// NewClient creates a Client with sensible defaults: no overall HTTP
// timeout (large archives on slow links take minutes; the retry layer
// bounds total elapsed time), a 30s dial/response-header budget via the
// default transport, and a 2 GB size cap.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
				Proxy:                 http.ProxyFromEnvironment,
			},
		},
		userAgent: defaultUserAgent,
		maxBytes:  defaultMaxArchiveBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with the client's headers. offset > 0 adds a Range
// header requesting the remainder of the resource.
func (c *Client) get(ctx context.Context, rawURL string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// Get downloads the resource at rawURL and returns the response body as a
// streaming reader. The caller is responsible for closing it. Used for
// small side resources (checksum files); archives go through DownloadFile.
func (c *Client) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, rawURL, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", redactURL(rawURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status %d", redactURL(rawURL), resp.StatusCode)
	}

	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, c.maxBytes), resp.Body}, nil
}

// redactURL strips query parameters and userinfo before a URL appears in an
// error message; signed mirror URLs can carry credentials in both places.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
