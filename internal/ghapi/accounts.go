package ghapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v66/github"
)

// CurrentUser returns the account the client is authenticated as. The
// login is fetched once per Client and remembered.
func (c *Client) CurrentUser(ctx context.Context) (Account, error) {
	c.selfMu.Lock()
	defer c.selfMu.Unlock()

	if c.self != "" {
		return Account{Login: c.self, Kind: AccountUser}, nil
	}

	u, resp, err := c.gh.Users.Get(ctx, "")
	err = classify(err)
	c.logResult(ctx, "current_user", resp, err)

	if err != nil {
		return Account{}, fmt.Errorf("ghapi: fetching current user: %w", err)
	}

	c.self = u.GetLogin()

	return Account{Login: c.self, Kind: AccountUser}, nil
}

// GetUser looks up an account by login. Organizations are also visible
// through the users endpoint; their Kind is reported as AccountOrg.
func (c *Client) GetUser(ctx context.Context, login string) (Account, error) {
	u, resp, err := c.gh.Users.Get(ctx, login)
	err = classify(err)
	c.logResult(ctx, "get_user", resp, err, slog.String("login", login))

	if err != nil {
		return Account{}, fmt.Errorf("ghapi: fetching user %s: %w", login, err)
	}

	kind := AccountUser
	if u.GetType() == "Organization" {
		kind = AccountOrg
	}

	return Account{Login: u.GetLogin(), Kind: kind}, nil
}

// GetOrg looks up an organization by login.
func (c *Client) GetOrg(ctx context.Context, login string) (Account, error) {
	o, resp, err := c.gh.Organizations.Get(ctx, login)
	err = classify(err)
	c.logResult(ctx, "get_org", resp, err, slog.String("login", login))

	if err != nil {
		return Account{}, fmt.Errorf("ghapi: fetching org %s: %w", login, err)
	}

	return Account{Login: o.GetLogin(), Kind: AccountOrg}, nil
}

// ListOrgs returns every organization the authenticated user belongs to.
func (c *Client) ListOrgs(ctx context.Context) ([]Account, error) {
	opts := &github.ListOptions{PerPage: pageSize}

	var out []Account

	for {
		orgs, resp, err := c.gh.Organizations.List(ctx, "", opts)
		err = classify(err)
		c.logResult(ctx, "list_orgs", resp, err, slog.Int("page", opts.Page))

		if err != nil {
			return nil, fmt.Errorf("ghapi: listing organizations: %w", err)
		}

		for _, o := range orgs {
			out = append(out, Account{Login: o.GetLogin(), Kind: AccountOrg})
		}

		if resp.NextPage == 0 {
			return out, nil
		}

		opts.Page = resp.NextPage
	}
}
