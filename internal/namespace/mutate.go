package namespace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/ghdrive/internal/ghapi"
)

// mutationTarget is a path deep enough to name something inside a
// repository.
type mutationTarget struct {
	vp    string
	owner string
	repo  string
	rel   string
}

func parseTarget(p string, op string) (mutationTarget, error) {
	segs, err := splitPath(p)
	if err != nil {
		return mutationTarget{}, fmt.Errorf("namespace: %s %q: %w", op, p, err)
	}

	if len(segs) < 3 {
		return mutationTarget{}, fmt.Errorf("namespace: %s %q: %w", op, p, ErrUnsupported)
	}

	return mutationTarget{
		vp:    joinPath(segs),
		owner: segs[0],
		repo:  segs[1],
		rel:   joinPath(segs[2:]),
	}, nil
}

// CreateFile commits a new file. The repository must exist and the path
// must not; an existing target fails with ErrAlreadyExists before any
// remote mutation.
func (d *Drive) CreateFile(ctx context.Context, p string, content []byte) (Entity, error) {
	t, err := parseTarget(p, "creating")
	if err != nil {
		return Entity{}, err
	}

	if err := d.checkAbsent(ctx, t); err != nil {
		return Entity{}, err
	}

	return d.commitNew(ctx, t, content)
}

// WriteFile stores content at p, updating the file if it exists (using
// its last known SHA) and creating it otherwise.
func (d *Drive) WriteFile(ctx context.Context, p string, content []byte) (Entity, error) {
	t, err := parseTarget(p, "writing")
	if err != nil {
		return Entity{}, err
	}

	existing, err := d.Resolve(ctx, t.vp)

	switch {
	case err == nil && existing.Kind == KindFile:
		// Update the file under the name the remote has, not the
		// normalized spelling the caller used.
		t.rel = existing.Path

		return d.commitUpdate(ctx, t, existing.Sha, content)
	case err == nil:
		return Entity{}, fmt.Errorf("namespace: writing %q: %w", t.vp, ErrNotFile)
	case errors.Is(err, ErrNotFound):
		if _, err := d.Resolve(ctx, t.owner+"/"+t.repo); err != nil {
			return Entity{}, fmt.Errorf("namespace: writing %q: %w", t.vp, err)
		}

		return d.commitNew(ctx, t, content)
	default:
		return Entity{}, fmt.Errorf("namespace: writing %q: %w", t.vp, err)
	}
}

// checkAbsent verifies the owning repository exists and the target does
// not.
func (d *Drive) checkAbsent(ctx context.Context, t mutationTarget) error {
	if _, err := d.Resolve(ctx, t.owner+"/"+t.repo); err != nil {
		return fmt.Errorf("namespace: creating %q: %w", t.vp, err)
	}

	_, err := d.Resolve(ctx, t.vp)

	switch {
	case err == nil:
		return fmt.Errorf("namespace: creating %q: %w", t.vp, ErrAlreadyExists)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return fmt.Errorf("namespace: creating %q: %w", t.vp, err)
	}
}

func (d *Drive) commitNew(ctx context.Context, t mutationTarget, content []byte) (Entity, error) {
	sha, err := d.remote.CreateFile(ctx, t.owner, t.repo, t.rel, d.commitMessage("create", t.vp), content)
	if err != nil {
		return Entity{}, fmt.Errorf("namespace: creating %q: %w", t.vp, err)
	}

	return d.afterWrite(t, sha, content, "created file"), nil
}

func (d *Drive) commitUpdate(ctx context.Context, t mutationTarget, oldSha string, content []byte) (Entity, error) {
	sha, err := d.remote.UpdateFile(ctx, t.owner, t.repo, t.rel, d.commitMessage("update", t.vp), oldSha, content)
	if err != nil {
		// A stale SHA means someone else committed; drop our copy so the
		// next attempt resolves afresh.
		if errors.Is(err, ErrConflict) {
			d.evict(t.vp)
		}

		return Entity{}, fmt.Errorf("namespace: updating %q: %w", t.vp, err)
	}

	return d.afterWrite(t, sha, content, "updated file"), nil
}

// afterWrite invalidates what the commit changed and caches the new
// file entity confirmed by the remote response.
func (d *Drive) afterWrite(t mutationTarget, sha string, content []byte, msg string) Entity {
	d.invalidate(t.vp, false)

	e := treeEntity(KindFile, t.owner, t.repo, t.rel, sha, int64(len(content)))
	if sha != "" {
		d.cache.Put(e)
	}

	d.logger.Info(msg, slog.String("path", t.vp), slog.String("sha", sha), slog.Int("bytes", len(content)))

	return e
}

// DeleteEntry removes a file, or with recursive set a folder and every
// file beneath it. Folder contents are deleted one commit per file, in
// order; a failure stops the walk and reports how far it got.
func (d *Drive) DeleteEntry(ctx context.Context, p string, recursive bool) error {
	t, err := parseTarget(p, "deleting")
	if err != nil {
		return err
	}

	e, err := d.Resolve(ctx, t.vp)
	if err != nil {
		return fmt.Errorf("namespace: deleting %q: %w", t.vp, err)
	}

	switch e.Kind {
	case KindFile:
		if err := d.remote.DeleteFile(ctx, t.owner, t.repo, e.Path, d.commitMessage("delete", t.vp), e.Sha); err != nil {
			d.evict(t.vp)
			return fmt.Errorf("namespace: deleting %q: %w", t.vp, err)
		}

		d.invalidate(t.vp, false)
		d.logger.Info("deleted file", slog.String("path", t.vp))

		return nil
	case KindFolder:
		if !recursive {
			return fmt.Errorf("namespace: deleting %q: %w", t.vp, ErrNotEmpty)
		}

		return d.deleteFolder(ctx, t, e)
	default:
		return fmt.Errorf("namespace: deleting %q (%s): %w", t.vp, e.Kind, ErrUnsupported)
	}
}

func (d *Drive) deleteFolder(ctx context.Context, t mutationTarget, e Entity) error {
	defer d.invalidate(t.vp, true)

	tree, err := d.remote.GetTree(ctx, t.owner, t.repo, e.Sha, true)
	if err != nil {
		return fmt.Errorf("namespace: deleting %q: %w", t.vp, err)
	}

	if tree.Truncated {
		return fmt.Errorf("namespace: deleting %q: %w", t.vp, ErrTooLarge)
	}

	deleted := 0

	for _, te := range tree.Entries {
		if te.Kind != ghapi.EntryBlob {
			continue
		}

		rel := e.Path + "/" + te.Path
		if err := d.remote.DeleteFile(ctx, t.owner, t.repo, rel, d.commitMessage("delete", t.owner+"/"+t.repo+"/"+rel), te.Sha); err != nil {
			return fmt.Errorf("namespace: deleting %q after %d files: %w", t.vp, deleted, err)
		}

		deleted++
	}

	d.logger.Info("deleted folder", slog.String("path", t.vp), slog.Int("files", deleted))

	return nil
}

// DeleteRepo deletes the repository at the two-segment path p.
func (d *Drive) DeleteRepo(ctx context.Context, p string) error {
	segs, err := splitPath(p)
	if err != nil {
		return fmt.Errorf("namespace: deleting repository %q: %w", p, err)
	}

	if len(segs) != 2 {
		return fmt.Errorf("namespace: deleting repository %q: %w", p, ErrUnsupported)
	}

	vp := joinPath(segs)

	if err := d.remote.DeleteRepo(ctx, segs[0], segs[1]); err != nil {
		return fmt.Errorf("namespace: deleting repository %q: %w", vp, err)
	}

	d.gen.Add(1)
	d.cache.Remove(vp)
	n := d.cache.RemovePrefix(vp + "/")

	d.logger.Info("deleted repository", slog.String("path", vp), slog.Int("evicted", n))

	return nil
}

// CreateDirectory creates a repository (two segments) or a folder
// (deeper paths). Folders are materialized by committing the
// placeholder file inside them.
func (d *Drive) CreateDirectory(ctx context.Context, p string) (Entity, error) {
	segs, err := splitPath(p)
	if err != nil {
		return Entity{}, fmt.Errorf("namespace: creating directory %q: %w", p, err)
	}

	switch {
	case len(segs) < 2:
		return Entity{}, fmt.Errorf("namespace: creating directory %q: %w", p, ErrUnsupported)
	case len(segs) == 2:
		return d.createRepo(ctx, segs[0], segs[1])
	default:
		return d.createFolder(ctx, mutationTarget{
			vp: joinPath(segs), owner: segs[0], repo: segs[1], rel: joinPath(segs[2:]),
		})
	}
}

func (d *Drive) createRepo(ctx context.Context, owner, name string) (Entity, error) {
	vp := owner + "/" + name

	class, err := d.ClassifyOwner(ctx, owner)
	if err != nil {
		return Entity{}, fmt.Errorf("namespace: creating repository %q: %w", vp, err)
	}

	var kind ghapi.AccountKind

	switch class {
	case OwnerOrg:
		kind = ghapi.AccountOrg
	case OwnerUser:
		// Repositories can only be created in the caller's own account.
		me, err := d.remote.CurrentUser(ctx)
		if err != nil {
			return Entity{}, fmt.Errorf("namespace: creating repository %q: %w", vp, err)
		}

		if me.Login != owner {
			return Entity{}, fmt.Errorf("namespace: creating repository %q in another user's account: %w", vp, ErrUnsupported)
		}

		kind = ghapi.AccountUser
	default:
		return Entity{}, fmt.Errorf("namespace: creating repository %q: no such owner: %w", vp, ErrUnsupported)
	}

	_, err = d.Resolve(ctx, vp)

	switch {
	case err == nil:
		return Entity{}, fmt.Errorf("namespace: creating repository %q: %w", vp, ErrAlreadyExists)
	case !errors.Is(err, ErrNotFound):
		return Entity{}, fmt.Errorf("namespace: creating repository %q: %w", vp, err)
	}

	if _, err := d.remote.CreateRepo(ctx, kind, owner, name); err != nil {
		return Entity{}, fmt.Errorf("namespace: creating repository %q: %w", vp, err)
	}

	e := repoEntity(owner, name)
	d.cache.Put(e)
	d.logger.Info("created repository", slog.String("path", vp), slog.String("owner_kind", kind.String()))

	return e, nil
}

func (d *Drive) createFolder(ctx context.Context, t mutationTarget) (Entity, error) {
	_, err := d.Resolve(ctx, t.vp)

	switch {
	case err == nil:
		return Entity{}, fmt.Errorf("namespace: creating folder %q: %w", t.vp, ErrAlreadyExists)
	case !errors.Is(err, ErrNotFound):
		return Entity{}, fmt.Errorf("namespace: creating folder %q: %w", t.vp, err)
	}

	if _, err := d.Resolve(ctx, t.owner+"/"+t.repo); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Entity{}, fmt.Errorf("namespace: creating folder %q: no repository %s/%s: %w",
				t.vp, t.owner, t.repo, ErrUnsupported)
		}

		return Entity{}, fmt.Errorf("namespace: creating folder %q: %w", t.vp, err)
	}

	marker := mutationTarget{
		vp:    t.vp + "/" + d.placeholder,
		owner: t.owner,
		repo:  t.repo,
		rel:   t.rel + "/" + d.placeholder,
	}

	if _, err := d.commitNew(ctx, marker, nil); err != nil {
		return Entity{}, err
	}

	// The folder's tree SHA is only known after the next resolve.
	return treeEntity(KindFolder, t.owner, t.repo, t.rel, "", 0), nil
}

// invalidate drops the cache entries a mutation at vp made stale: vp
// itself, its direct parent, and every folder above it (each of their
// tree objects changed). With container set, vp's cached descendants go
// as well. Owners, the root, and siblings are left alone.
func (d *Drive) invalidate(vp string, container bool) {
	d.gen.Add(1)
	d.cache.Remove(vp)

	if container {
		d.cache.RemovePrefix(vp + "/")
	}

	parent := parentPath(vp)
	d.cache.Remove(parent)

	for p := parentPath(parent); depth(p) > 2; p = parentPath(p) {
		d.cache.Remove(p)
	}
}

// evict drops one entry known to be stale.
func (d *Drive) evict(vp string) {
	d.gen.Add(1)
	d.cache.Remove(vp)
}
