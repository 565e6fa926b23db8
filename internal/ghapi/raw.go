package ghapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/snabb/httpreaderat"
)

// OpenRaw returns a random-access reader over a file at ref, served by
// the raw content host with HTTP range requests. Large files can be read
// piecewise without downloading the whole blob. The request is bound to
// ctx, so the reader must not outlive it.
func (c *Client) OpenRaw(ctx context.Context, owner, repo, ref, path string) (*httpreaderat.HTTPReaderAt, error) {
	u := c.RawURL(owner, repo, ref, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("ghapi: creating raw request: %w", err)
	}

	r, err := httpreaderat.New(c.httpClient, req, nil)
	if err != nil {
		c.logger.Info("raw open failed", slog.String("url", u), slog.String("error", err.Error()))
		return nil, fmt.Errorf("ghapi: opening %s: %w", u, err)
	}

	c.logger.Debug("raw open", slog.String("url", u), slog.Int64("size", r.Size()))

	return r, nil
}

// RawURL builds the raw content URL of path at ref. Each path segment is
// escaped individually so slashes stay separators.
func (c *Client) RawURL(owner, repo, ref, path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}

	return fmt.Sprintf("%s/%s/%s/%s/%s", c.rawURL,
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref), strings.Join(segs, "/"))
}
