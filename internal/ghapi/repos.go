package ghapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v66/github"
)

// ListRepos returns every repository owned by owner. For AccountOrg
// the organization listing is used. For AccountUser, the authenticated
// user's own login lists owned repositories including private ones;
// any other login lists the public repositories of that user.
func (c *Client) ListRepos(ctx context.Context, kind AccountKind, owner string) ([]Repository, error) {
	switch kind {
	case AccountOrg:
		return c.listOrgRepos(ctx, owner)
	case AccountUser:
		me, err := c.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}

		if me.Login == owner {
			return c.listOwnRepos(ctx)
		}

		return c.listUserRepos(ctx, owner)
	default:
		return nil, fmt.Errorf("ghapi: listing repositories of %s: unknown account kind %d", owner, kind)
	}
}

func (c *Client) listOrgRepos(ctx context.Context, org string) ([]Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	var out []Repository

	for {
		repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
		err = classify(err)
		c.logResult(ctx, "list_org_repos", resp, err, slog.String("owner", org), slog.Int("page", opts.Page))

		if err != nil {
			return nil, fmt.Errorf("ghapi: listing repositories of org %s: %w", org, err)
		}

		out = appendRepos(out, repos)

		if resp.NextPage == 0 {
			return out, nil
		}

		opts.Page = resp.NextPage
	}
}

func (c *Client) listOwnRepos(ctx context.Context) ([]Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Affiliation: "owner",
		Visibility:  "all",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	var out []Repository

	for {
		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		err = classify(err)
		c.logResult(ctx, "list_own_repos", resp, err, slog.Int("page", opts.Page))

		if err != nil {
			return nil, fmt.Errorf("ghapi: listing own repositories: %w", err)
		}

		out = appendRepos(out, repos)

		if resp.NextPage == 0 {
			return out, nil
		}

		opts.Page = resp.NextPage
	}
}

func (c *Client) listUserRepos(ctx context.Context, user string) ([]Repository, error) {
	opts := &github.RepositoryListByUserOptions{
		Type:        "owner",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	var out []Repository

	for {
		repos, resp, err := c.gh.Repositories.ListByUser(ctx, user, opts)
		err = classify(err)
		c.logResult(ctx, "list_user_repos", resp, err, slog.String("owner", user), slog.Int("page", opts.Page))

		if err != nil {
			return nil, fmt.Errorf("ghapi: listing repositories of user %s: %w", user, err)
		}

		out = appendRepos(out, repos)

		if resp.NextPage == 0 {
			return out, nil
		}

		opts.Page = resp.NextPage
	}
}

func appendRepos(out []Repository, repos []*github.Repository) []Repository {
	for _, r := range repos {
		out = append(out, toRepository(r))
	}

	return out
}

func toRepository(r *github.Repository) Repository {
	return Repository{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
	}
}

// GetRepo fetches a single repository.
func (c *Client) GetRepo(ctx context.Context, owner, name string) (Repository, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	err = classify(err)
	c.logResult(ctx, "get_repo", resp, err, slog.String("owner", owner), slog.String("repo", name))

	if err != nil {
		return Repository{}, fmt.Errorf("ghapi: fetching repository %s/%s: %w", owner, name, err)
	}

	return toRepository(r), nil
}

// CreateRepo creates an empty repository. For AccountOrg it is created
// inside the organization, for AccountUser under the authenticated user
// (owner is only used for logging in that case).
func (c *Client) CreateRepo(ctx context.Context, kind AccountKind, owner, name string) (Repository, error) {
	org := ""
	if kind == AccountOrg {
		org = owner
	}

	r, resp, err := c.gh.Repositories.Create(ctx, org, &github.Repository{Name: github.String(name)})
	err = classify(err)
	c.logResult(ctx, "create_repo", resp, err,
		slog.String("kind", kind.String()), slog.String("owner", owner), slog.String("repo", name))

	if err != nil {
		return Repository{}, fmt.Errorf("ghapi: creating repository %s/%s: %w", owner, name, err)
	}

	return toRepository(r), nil
}

// DeleteRepo deletes a repository. Requires the delete_repo scope.
func (c *Client) DeleteRepo(ctx context.Context, owner, name string) error {
	resp, err := c.gh.Repositories.Delete(ctx, owner, name)
	err = classify(err)
	c.logResult(ctx, "delete_repo", resp, err, slog.String("owner", owner), slog.String("repo", name))

	if err != nil {
		return fmt.Errorf("ghapi: deleting repository %s/%s: %w", owner, name, err)
	}

	return nil
}
