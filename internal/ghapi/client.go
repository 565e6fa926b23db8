package ghapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/go-github/v66/github"
)

// Default endpoints for github.com.
const (
	DefaultBaseURL = "https://api.github.com/"
	DefaultRawURL  = "https://raw.githubusercontent.com/"
	userAgent      = "ghdrive/0.1"
)

// pageSize is the maximum page size GitHub accepts for list endpoints.
const pageSize = 100

// Client talks to the GitHub REST API. It performs exactly one HTTP
// exchange per remote operation (plus pagination) and never retries:
// stale SHAs, rate limits and server errors surface to the caller as
// classified errors.
type Client struct {
	gh         *github.Client
	httpClient *http.Client
	rawURL     string
	logger     *slog.Logger

	selfMu sync.Mutex
	self   string // authenticated login, once known
}

// Options configures a Client. Zero values select github.com defaults.
type Options struct {
	BaseURL   string // REST API root, e.g. https://api.github.com/
	RawURL    string // raw content host used for ranged reads
	UserAgent string
}

// NewClient creates a GitHub API client. httpClient carries
// authentication (typically built by oauth2.NewClient) and timeouts.
func NewClient(httpClient *http.Client, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	gh := github.NewClient(httpClient)

	if opts.BaseURL != "" {
		u, err := parseRootURL(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("ghapi: parsing base URL: %w", err)
		}

		gh.BaseURL = u
	}

	gh.UserAgent = userAgent
	if opts.UserAgent != "" {
		gh.UserAgent = opts.UserAgent
	}

	rawURL := opts.RawURL
	if rawURL == "" {
		rawURL = DefaultRawURL
	}

	return &Client{
		gh:         gh,
		httpClient: httpClient,
		rawURL:     strings.TrimSuffix(rawURL, "/"),
		logger:     logger,
	}, nil
}

// parseRootURL parses u and ensures a trailing slash, which go-github
// requires for relative endpoint resolution.
func parseRootURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}

	return u, nil
}

// logResult records the outcome of one API operation. Successful calls
// log at debug, failures at info with the classified error.
func (c *Client) logResult(ctx context.Context, op string, resp *github.Response, err error, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{slog.String("op", op)}, attrs...)

	if resp != nil && resp.Response != nil {
		attrs = append(attrs, slog.Int("status", resp.StatusCode))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		c.logger.LogAttrs(ctx, slog.LevelInfo, "github request failed", attrs...)

		return
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "github request succeeded", attrs...)
}
