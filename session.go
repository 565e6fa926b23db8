package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/ghdrive/internal/blobcache"
	"github.com/tonimelisma/ghdrive/internal/config"
	"github.com/tonimelisma/ghdrive/internal/ghapi"
	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// Session holds the authenticated GitHub client and the namespace drive
// built on it. One Session serves one command invocation or one mount.
type Session struct {
	Client *ghapi.Client
	Drive  *namespace.Drive
	blobs  *blobcache.Store
	logger *slog.Logger
}

// NewSession authenticates, opens the blob cache when enabled, and
// builds the namespace drive.
func NewSession(ctx context.Context, cc *CLIContext) (*Session, error) {
	cfg := cc.Cfg
	logger := cc.Logger

	ts, err := tokenSource(ctx, cc)
	if err != nil {
		return nil, err
	}

	client, err := newClient(ctx, cfg, ts, logger)
	if err != nil {
		return nil, err
	}

	maxBlob, maxCache, _ := cfg.Sizes()

	s := &Session{Client: client, logger: logger}

	opts := namespace.Options{
		Placeholder:  cfg.Content.PlaceholderName,
		CommitPrefix: cfg.Content.CommitPrefix,
		MaxBlobSize:  maxBlob,
		Logger:       logger,
	}

	if cfg.Cache.BlobCache {
		s.blobs = openBlobCache(ctx, config.BlobCachePath(cfg), maxCache, logger)
		if s.blobs != nil {
			opts.Blobs = s.blobs
		}
	}

	s.Drive = namespace.New(client, opts)

	logger.Debug("session ready",
		slog.String("session_id", s.Drive.SessionID()),
		slog.Bool("blob_cache", s.blobs != nil),
	)

	return s, nil
}

// newClient builds a GitHub client for cfg's endpoints authenticated by ts.
func newClient(ctx context.Context, cfg *config.Config, ts oauth2.TokenSource, logger *slog.Logger) (*ghapi.Client, error) {
	connect, data, _ := cfg.Durations()

	return ghapi.NewClient(newHTTPClient(ctx, ts, connect, data), ghapi.Options{
		BaseURL:   cfg.GitHub.APIURL,
		RawURL:    cfg.GitHub.RawURL,
		UserAgent: cfg.Network.UserAgent,
	}, logger)
}

// openBlobCache returns nil when the cache cannot be opened; commands
// still work, only without local content reuse.
func openBlobCache(ctx context.Context, path string, maxBytes int64, logger *slog.Logger) *blobcache.Store {
	if path == "" {
		logger.Warn("blob cache disabled: cannot determine cache directory")
		return nil
	}

	store, err := blobcache.Open(ctx, path, maxBytes, logger)
	if err != nil {
		logger.Warn("blob cache disabled", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}

	return store
}

// Close releases the blob cache.
func (s *Session) Close() {
	if s.blobs == nil {
		return
	}

	if err := s.blobs.Close(); err != nil {
		s.logger.Warn("closing blob cache", slog.String("error", err.Error()))
	}
}

// tokenSource picks the credential: GHDRIVE_TOKEN or GITHUB_TOKEN from
// the environment, otherwise the saved token file.
func tokenSource(ctx context.Context, cc *CLIContext) (oauth2.TokenSource, error) {
	if cc.Env.Token != "" {
		cc.Logger.Debug("using token from environment")
		return ghapi.StaticTokenSource(cc.Env.Token), nil
	}

	path := config.TokenPath(cc.Cfg)
	if path == "" {
		return nil, errors.New("cannot determine token path; set github.token_file")
	}

	ts, err := ghapi.TokenSourceFromPath(ctx, cc.Cfg.GitHub.ClientID, path, cc.Logger)
	if err != nil {
		if errors.Is(err, ghapi.ErrNotLoggedIn) {
			return nil, fmt.Errorf("not logged in: %w", err)
		}

		return nil, err
	}

	return ts, nil
}

// newHTTPClient builds an authenticated client. connect bounds dialing
// and the TLS handshake; data bounds the wait for response headers. No
// overall timeout is set because streamed reads may run long.
func newHTTPClient(ctx context.Context, ts oauth2.TokenSource, connect, data time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: data,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}

	base := &http.Client{Transport: transport}

	return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
}
