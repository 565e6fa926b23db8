package ghapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/tonimelisma/ghdrive/internal/tokenfile"
)

// defaultScopes covers reading and writing repository contents, listing
// organization membership, and deleting repositories.
var defaultScopes = []string{"repo", "read:org", "delete_repo"}

// DeviceAuth holds the device code response fields the CLI shows.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
}

// Login runs the OAuth device flow for the OAuth app identified by
// clientID, saves the token at tokenPath, and returns a token source
// that persists refreshed tokens.
func Login(
	ctx context.Context,
	clientID, tokenPath string,
	display func(DeviceAuth),
	logger *slog.Logger,
) (oauth2.TokenSource, error) {
	if clientID == "" {
		return nil, errors.New("ghapi: device login requires github.client_id in the config file")
	}

	return doLogin(ctx, tokenPath, oauthConfig(clientID), display, logger)
}

// doLogin implements the device flow against cfg so tests can inject a
// mock endpoint.
func doLogin(
	ctx context.Context,
	tokenPath string,
	cfg *oauth2.Config,
	display func(DeviceAuth),
	logger *slog.Logger,
) (oauth2.TokenSource, error) {
	logger.Info("starting device code auth flow", slog.String("path", tokenPath))

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("ghapi: device auth request failed: %w", err)
	}

	display(DeviceAuth{UserCode: da.UserCode, VerificationURI: da.VerificationURI})

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("ghapi: device code authorization failed: %w", err)
	}

	if err := tokenfile.Save(tokenPath, &tokenfile.File{Token: tok, Source: tokenfile.SourceDevice}); err != nil {
		return nil, fmt.Errorf("ghapi: saving token: %w", err)
	}

	logger.Info("login successful", slog.String("path", tokenPath))

	return newPersistingSource(cfg.TokenSource(ctx, tok), tokenPath, &tokenfile.File{
		Token: tok, Source: tokenfile.SourceDevice,
	}, logger), nil
}

// SavePersonalToken stores a personal access token at tokenPath.
func SavePersonalToken(tokenPath, token string) error {
	return tokenfile.Save(tokenPath, &tokenfile.File{
		Token:  &oauth2.Token{AccessToken: token, TokenType: "bearer"},
		Source: tokenfile.SourcePAT,
	})
}

// RecordLogin stores the authenticated login next to the token so later
// commands can show it without an API call.
func RecordLogin(tokenPath, login string) error {
	f, err := tokenfile.Load(tokenPath)
	if err != nil {
		return err
	}

	if f == nil {
		return fmt.Errorf("ghapi: no token file at %s: %w", tokenPath, ErrNotLoggedIn)
	}

	f.Login = login

	return tokenfile.Save(tokenPath, f)
}

// TokenSourceFromPath loads the credential at tokenPath. Device-flow
// tokens refresh through clientID's OAuth app; personal access tokens
// are served as-is. Returns ErrNotLoggedIn if no file exists.
func TokenSourceFromPath(ctx context.Context, clientID, tokenPath string, logger *slog.Logger) (oauth2.TokenSource, error) {
	f, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if f == nil {
		return nil, ErrNotLoggedIn
	}

	logger.Debug("loaded saved token",
		slog.String("path", tokenPath),
		slog.String("source", f.Source),
		slog.String("login", f.Login),
	)

	if f.Source == tokenfile.SourcePAT || f.Token.RefreshToken == "" || clientID == "" {
		return oauth2.StaticTokenSource(f.Token), nil
	}

	return newPersistingSource(oauthConfig(clientID).TokenSource(ctx, f.Token), tokenPath, f, logger), nil
}

// StaticTokenSource wraps a bare token, e.g. from GITHUB_TOKEN.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "bearer"})
}

// Logout removes the credential file at tokenPath.
func Logout(tokenPath string, logger *slog.Logger) error {
	removed, err := tokenfile.Remove(tokenPath)
	if err != nil {
		return err
	}

	if !removed {
		logger.Info("logout: no token file to remove", slog.String("path", tokenPath))
		return nil
	}

	logger.Info("logout: removed token file", slog.String("path", tokenPath))

	return nil
}

func oauthConfig(clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   defaultScopes,
		Endpoint: githuboauth.Endpoint,
	}
}

// persistingSource writes refreshed tokens back to disk. GitHub only
// issues refresh tokens for apps with expiring user tokens enabled;
// for everything else the access token never changes and nothing is
// written.
type persistingSource struct {
	src    oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	file *tokenfile.File
}

func newPersistingSource(src oauth2.TokenSource, path string, f *tokenfile.File, logger *slog.Logger) *persistingSource {
	return &persistingSource{src: src, path: path, file: f, logger: logger}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		p.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("ghapi: obtaining token: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file.Token != nil && p.file.Token.AccessToken == tok.AccessToken {
		return tok, nil
	}

	p.file.Token = tok
	if err := tokenfile.Save(p.path, p.file); err != nil {
		p.logger.Warn("failed to persist refreshed token",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)
	} else {
		p.logger.Info("persisted refreshed token", slog.String("path", p.path), slog.Time("expiry", tok.Expiry))
	}

	return tok, nil
}
