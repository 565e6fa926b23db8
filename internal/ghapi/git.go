package ghapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v66/github"
)

// HeadCommit returns the SHA of the commit at the head of the default
// branch. A repository without commits yields an error matching both
// ErrEmptyRepository and the underlying classification.
func (c *Client) HeadCommit(ctx context.Context, owner, repo string) (string, error) {
	r, err := c.GetRepo(ctx, owner, repo)
	if err != nil {
		return "", err
	}

	if r.DefaultBranch == "" {
		return "", fmt.Errorf("ghapi: %s/%s has no default branch: %w", owner, repo, ErrEmptyRepository)
	}

	ref, resp, err := c.gh.Git.GetRef(ctx, owner, repo, "heads/"+r.DefaultBranch)
	err = classify(err)
	c.logResult(ctx, "get_ref", resp, err,
		slog.String("owner", owner), slog.String("repo", repo), slog.String("branch", r.DefaultBranch))

	if err != nil {
		// GitHub answers 409 "Git Repository is empty" for repositories
		// without commits, and 404 when the default branch ref is missing.
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("ghapi: resolving head of %s/%s: %w: %w", owner, repo, ErrEmptyRepository, err)
		}

		return "", fmt.Errorf("ghapi: resolving head of %s/%s: %w", owner, repo, err)
	}

	return ref.GetObject().GetSHA(), nil
}

// GetTree lists the git tree identified by sha, which may be a tree SHA
// or a commit SHA. With recursive set, every descendant is listed with
// its path relative to that tree.
func (c *Client) GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (Tree, error) {
	t, resp, err := c.gh.Git.GetTree(ctx, owner, repo, sha, recursive)
	err = classify(err)
	c.logResult(ctx, "get_tree", resp, err,
		slog.String("owner", owner), slog.String("repo", repo),
		slog.String("sha", sha), slog.Bool("recursive", recursive))

	if err != nil {
		return Tree{}, fmt.Errorf("ghapi: fetching tree %s of %s/%s: %w", sha, owner, repo, err)
	}

	out := Tree{
		Sha:       t.GetSHA(),
		Truncated: t.GetTruncated(),
		Entries:   make([]TreeEntry, 0, len(t.Entries)),
	}

	for _, e := range t.Entries {
		out.Entries = append(out.Entries, TreeEntry{
			Path: e.GetPath(),
			Kind: EntryKind(e.GetType()),
			Sha:  e.GetSHA(),
			Size: int64(e.GetSize()),
		})
	}

	if out.Truncated {
		c.logger.Warn("github returned a truncated tree",
			slog.String("owner", owner), slog.String("repo", repo), slog.String("sha", sha))
	}

	return out, nil
}

// GetBlob reads a file of the default branch through the contents API.
// Files above the contents API inline limit (1 MB) come back without a
// body and are fetched again through the git blobs API by SHA.
func (c *Client) GetBlob(ctx context.Context, owner, repo, path string) (Blob, error) {
	file, dir, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{})
	err = classify(err)
	c.logResult(ctx, "get_contents", resp, err,
		slog.String("owner", owner), slog.String("repo", repo), slog.String("path", path))

	if err != nil {
		return Blob{}, fmt.Errorf("ghapi: reading %s/%s/%s: %w", owner, repo, path, err)
	}

	if file == nil {
		return Blob{}, fmt.Errorf("ghapi: reading %s/%s/%s: directory with %d entries: %w",
			owner, repo, path, len(dir), ErrUnexpected)
	}

	if file.GetEncoding() == "none" || (file.Content == nil && file.GetSize() > 0) {
		return c.GetBlobBySha(ctx, owner, repo, file.GetSHA())
	}

	content, err := file.GetContent()
	if err != nil {
		return Blob{}, fmt.Errorf("ghapi: decoding %s/%s/%s: %w", owner, repo, path, err)
	}

	return Blob{Content: []byte(content), Sha: file.GetSHA()}, nil
}

// GetBlobBySha reads raw blob bytes through the git blobs API.
func (c *Client) GetBlobBySha(ctx context.Context, owner, repo, sha string) (Blob, error) {
	data, resp, err := c.gh.Git.GetBlobRaw(ctx, owner, repo, sha)
	err = classify(err)
	c.logResult(ctx, "get_blob_raw", resp, err,
		slog.String("owner", owner), slog.String("repo", repo), slog.String("sha", sha))

	if err != nil {
		return Blob{}, fmt.Errorf("ghapi: reading blob %s of %s/%s: %w", sha, owner, repo, err)
	}

	return Blob{Content: data, Sha: sha}, nil
}
