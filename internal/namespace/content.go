package namespace

import (
	"context"
	"crypto/sha1" //nolint:gosec // git object ids are SHA-1
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
)

// ReadFile returns the content of the file at p along with its entity.
// Content is looked up in the blob store by SHA before asking the remote.
func (d *Drive) ReadFile(ctx context.Context, p string) ([]byte, Entity, error) {
	e, err := d.Resolve(ctx, p)
	if err != nil {
		return nil, Entity{}, err
	}

	if e.Kind != KindFile {
		return nil, Entity{}, fmt.Errorf("namespace: reading %q (%s): %w", e.VirtualPath(), e.Kind, ErrNotFile)
	}

	if data, ok := d.cachedBlob(ctx, e.Sha); ok {
		e.Size = int64(len(data))
		return data, e, nil
	}

	gen := d.generation()

	blob, err := d.remote.GetBlob(ctx, e.Owner, e.Repo, e.Path)
	if err != nil {
		return nil, Entity{}, fmt.Errorf("namespace: reading %q: %w", e.VirtualPath(), err)
	}

	if blob.Sha != "" && blob.Sha != e.Sha {
		// The file changed since it was resolved.
		d.logger.Debug("blob sha moved",
			slog.String("path", e.VirtualPath()), slog.String("cached", e.Sha), slog.String("remote", blob.Sha))

		e = treeEntity(KindFile, e.Owner, e.Repo, e.Path, blob.Sha, 0)
	}

	e.Size = int64(len(blob.Content))
	d.cacheIfCurrent(gen, e)
	d.storeBlob(ctx, e, blob.Content)

	return blob.Content, e, nil
}

func (d *Drive) cachedBlob(ctx context.Context, sha string) ([]byte, bool) {
	if d.blobs == nil || sha == "" {
		return nil, false
	}

	data, ok, err := d.blobs.Get(ctx, sha)
	if err != nil {
		d.logger.Warn("blob cache read failed", slog.String("sha", sha), slog.String("error", err.Error()))
		return nil, false
	}

	return data, ok
}

// storeBlob saves content under the entity's SHA when it hashes to that
// SHA and fits the size limit. Failures only cost a future re-download.
func (d *Drive) storeBlob(ctx context.Context, e Entity, content []byte) {
	if d.blobs == nil || e.Sha == "" {
		return
	}

	if d.maxBlobSize > 0 && int64(len(content)) > d.maxBlobSize {
		return
	}

	if got := GitBlobSHA(content); got != e.Sha {
		d.logger.Warn("blob content does not match sha",
			slog.String("path", e.VirtualPath()), slog.String("want", e.Sha), slog.String("got", got))

		return
	}

	if err := d.blobs.Put(ctx, e.Sha, content); err != nil {
		d.logger.Warn("blob cache write failed", slog.String("sha", e.Sha), slog.String("error", err.Error()))
	}
}

// GitBlobSHA computes the git object id of content stored as a blob.
func GitBlobSHA(content []byte) string {
	h := sha1.New() //nolint:gosec // git object ids are SHA-1
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)

	return hex.EncodeToString(h.Sum(nil))
}
