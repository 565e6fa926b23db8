package ghapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v66/github"
)

// CreateFile commits a new file to the default branch and returns the
// SHA of the new blob.
func (c *Client) CreateFile(ctx context.Context, owner, repo, path, message string, content []byte) (string, error) {
	res, resp, err := c.gh.Repositories.CreateFile(ctx, owner, repo, path, &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
	})
	err = classify(err)
	c.logResult(ctx, "create_file", resp, err,
		slog.String("owner", owner), slog.String("repo", repo),
		slog.String("path", path), slog.Int("bytes", len(content)))

	if err != nil {
		return "", fmt.Errorf("ghapi: creating %s/%s/%s: %w", owner, repo, path, err)
	}

	return res.GetContent().GetSHA(), nil
}

// UpdateFile replaces an existing file. sha must be the blob SHA the
// caller last observed; GitHub rejects stale values with 409.
func (c *Client) UpdateFile(ctx context.Context, owner, repo, path, message, sha string, content []byte) (string, error) {
	res, resp, err := c.gh.Repositories.UpdateFile(ctx, owner, repo, path, &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
		SHA:     github.String(sha),
	})
	err = classify(err)
	c.logResult(ctx, "update_file", resp, err,
		slog.String("owner", owner), slog.String("repo", repo),
		slog.String("path", path), slog.String("sha", sha), slog.Int("bytes", len(content)))

	if err != nil {
		return "", fmt.Errorf("ghapi: updating %s/%s/%s: %w", owner, repo, path, err)
	}

	return res.GetContent().GetSHA(), nil
}

// DeleteFile removes a file from the default branch. sha must be the
// blob SHA the caller last observed.
func (c *Client) DeleteFile(ctx context.Context, owner, repo, path, message, sha string) error {
	_, resp, err := c.gh.Repositories.DeleteFile(ctx, owner, repo, path, &github.RepositoryContentFileOptions{
		Message: github.String(message),
		SHA:     github.String(sha),
	})
	err = classify(err)
	c.logResult(ctx, "delete_file", resp, err,
		slog.String("owner", owner), slog.String("repo", repo),
		slog.String("path", path), slog.String("sha", sha))

	if err != nil {
		return fmt.Errorf("ghapi: deleting %s/%s/%s: %w", owner, repo, path, err)
	}

	return nil
}
