package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/ghdrive/internal/config"
	"github.com/tonimelisma/ghdrive/internal/ghapi"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with GitHub",
		Long: `Authenticate with GitHub and save the token.

By default this runs the OAuth device flow for the OAuth app named by
github.client_id in the config file. With --with-token, a personal access
token is read from stdin instead:

  gh auth token | ghdrive login --with-token

The token needs the repo and read:org scopes, plus delete_repo for rmrepo.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().Bool("with-token", false, "read a personal access token from stdin")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Remove the saved token",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user and their organizations",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	logger := cc.Logger

	withToken, err := cmd.Flags().GetBool("with-token")
	if err != nil {
		return err
	}

	tokenPath := config.TokenPath(cc.Cfg)
	if tokenPath == "" {
		return errors.New("cannot determine token path; set github.token_file")
	}

	logger.Info("login started", slog.String("path", tokenPath), slog.Bool("with_token", withToken))

	var ts oauth2.TokenSource

	if withToken {
		ts, err = loginWithToken(cmd.InOrStdin(), tokenPath)
	} else {
		ts, err = ghapi.Login(ctx, cc.Cfg.GitHub.ClientID, tokenPath, func(da ghapi.DeviceAuth) {
			// Device code prompts must always be visible, even with --quiet.
			fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", da.VerificationURI)
			fmt.Fprintf(os.Stderr, "Enter code: %s\n", da.UserCode)
		}, logger)
	}

	if err != nil {
		return err
	}

	login, err := verifyLogin(ctx, cc, ts, tokenPath)
	if err != nil {
		return err
	}

	cc.Statusf("Logged in as %s.\n", login)

	if cc.Env.Token != "" {
		cc.Statusf("Note: a token in the environment takes precedence over the saved one.\n")
	}

	return nil
}

// loginWithToken reads a personal access token from r and saves it.
func loginWithToken(r io.Reader, tokenPath string) (oauth2.TokenSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading token from stdin: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, errors.New("no token on stdin")
	}

	if err := ghapi.SavePersonalToken(tokenPath, token); err != nil {
		return nil, err
	}

	return ghapi.StaticTokenSource(token), nil
}

// verifyLogin checks the new credential against the API and records the
// login it belongs to.
func verifyLogin(ctx context.Context, cc *CLIContext, ts oauth2.TokenSource, tokenPath string) (string, error) {
	client, err := newClient(ctx, cc.Cfg, ts, cc.Logger)
	if err != nil {
		return "", err
	}

	me, err := client.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("verifying token: %w", err)
	}

	if err := ghapi.RecordLogin(tokenPath, me.Login); err != nil {
		cc.Logger.Warn("could not record login", slog.String("error", err.Error()))
	}

	cc.Logger.Info("login successful", slog.String("login", me.Login))

	return me.Login, nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	tokenPath := config.TokenPath(cc.Cfg)
	if tokenPath == "" {
		return errors.New("cannot determine token path; set github.token_file")
	}

	if err := ghapi.Logout(tokenPath, cc.Logger); err != nil {
		return err
	}

	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Login         string   `json:"login"`
	Organizations []string `json:"organizations"`
	TokenSource   string   `json:"token_source"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	s, err := NewSession(ctx, cc)
	if err != nil {
		return err
	}
	defer s.Close()

	me, err := s.Client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("fetching user: %w", err)
	}

	orgs, err := s.Client.ListOrgs(ctx)
	if err != nil {
		return fmt.Errorf("listing organizations: %w", err)
	}

	out := whoamiOutput{
		Login:         me.Login,
		Organizations: make([]string, 0, len(orgs)),
		TokenSource:   describeTokenSource(cc),
	}

	for _, o := range orgs {
		out.Organizations = append(out.Organizations, o.Login)
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, out)
	}

	printWhoamiText(os.Stdout, out)

	return nil
}

func describeTokenSource(cc *CLIContext) string {
	if cc.Env.Token != "" {
		return "environment"
	}

	return config.TokenPath(cc.Cfg)
}

func printWhoamiText(w io.Writer, out whoamiOutput) {
	fmt.Fprintf(w, "User:  %s\n", out.Login)
	fmt.Fprintf(w, "Token: %s\n", out.TokenSource)

	if len(out.Organizations) == 0 {
		fmt.Fprintln(w, "Orgs:  (none)")
		return
	}

	fmt.Fprintf(w, "Orgs:  %s\n", strings.Join(out.Organizations, ", "))
}
