package namespace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/ghdrive/internal/ghapi"
)

// OwnerClass is the outcome of classifying a top-level name.
type OwnerClass int

// Owner classifications.
const (
	OwnerNeither OwnerClass = iota
	OwnerOrg
	OwnerUser
)

func (c OwnerClass) String() string {
	switch c {
	case OwnerOrg:
		return "org"
	case OwnerUser:
		return "user"
	default:
		return "neither"
	}
}

// Resolve turns a namespace path into an entity. A cached entry answers
// without any remote call; otherwise the path depth selects the probe:
//
//	0 segments  root
//	1 segment   organization lookup, then user lookup
//	2 segments  repository lookup
//	more        search of the default branch's full tree
//
// Concurrent resolutions of one path share a single remote probe.
func (d *Drive) Resolve(ctx context.Context, p string) (Entity, error) {
	segs, err := splitPath(p)
	if err != nil {
		return Entity{}, fmt.Errorf("namespace: resolving %q: %w", p, err)
	}

	key := joinPath(segs)

	if e, ok := d.cache.Get(key); ok {
		d.logger.Debug("resolve cache hit", slog.String("path", key))
		return e, nil
	}

	v, err, shared := d.flight.Do(key, func() (any, error) {
		return d.resolveRemote(ctx, segs)
	})
	if err != nil {
		return Entity{}, fmt.Errorf("namespace: resolving %q: %w", key, err)
	}

	e, _ := v.(Entity)

	d.logger.Debug("resolved",
		slog.String("path", key), slog.String("kind", e.Kind.String()), slog.Bool("shared", shared))

	return e, nil
}

func (d *Drive) resolveRemote(ctx context.Context, segs []string) (Entity, error) {
	gen := d.generation()

	var e Entity

	switch len(segs) {
	case 0:
		e = rootEntity()
	case 1:
		class, err := d.ClassifyOwner(ctx, segs[0])
		if err != nil {
			return Entity{}, err
		}

		switch class {
		case OwnerOrg:
			e = ownerEntity(KindOrg, segs[0])
		case OwnerUser:
			e = ownerEntity(KindUser, segs[0])
		default:
			return Entity{}, fmt.Errorf("no user or organization named %q: %w", segs[0], ErrNotFound)
		}
	case 2:
		if _, err := d.remote.GetRepo(ctx, segs[0], segs[1]); err != nil {
			return Entity{}, err
		}

		e = repoEntity(segs[0], segs[1])
	default:
		found, err := d.findInTree(ctx, segs[0], segs[1], joinPath(segs[2:]))
		if err != nil {
			return Entity{}, err
		}

		e = found
	}

	d.cacheIfCurrent(gen, e)

	return e, nil
}

// ClassifyOwner decides whether name is an organization, a user, or
// neither. The organization probe runs first; the user probe only runs
// when no organization exists. Not-found answers are outcomes, any
// other remote error is returned.
func (d *Drive) ClassifyOwner(ctx context.Context, name string) (OwnerClass, error) {
	_, err := d.remote.GetOrg(ctx, name)

	found, err := probeOutcome(err)
	if err != nil {
		return OwnerNeither, err
	}

	if found {
		return OwnerOrg, nil
	}

	acct, err := d.remote.GetUser(ctx, name)

	found, err = probeOutcome(err)
	if err != nil {
		return OwnerNeither, err
	}

	if !found {
		return OwnerNeither, nil
	}

	if acct.Kind == ghapi.AccountOrg {
		return OwnerOrg, nil
	}

	return OwnerUser, nil
}

// probeOutcome interprets the error of an existence probe: nil means
// found, not-found means absent, anything else is a real failure.
func probeOutcome(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// findInTree locates rel on the default branch of owner/repo by scanning
// the full recursive tree. The returned entity carries the path as the
// remote spells it, which may differ from rel in normalization. A
// truncated tree can still confirm presence, but absence from it is
// reported as ErrTooLarge.
func (d *Drive) findInTree(ctx context.Context, owner, repo, rel string) (Entity, error) {
	head, err := d.remote.HeadCommit(ctx, owner, repo)
	if err != nil {
		if errors.Is(err, ghapi.ErrEmptyRepository) {
			return Entity{}, fmt.Errorf("%s/%s is empty: %w", owner, repo, ErrNotFound)
		}

		return Entity{}, err
	}

	tree, err := d.remote.GetTree(ctx, owner, repo, head, true)
	if err != nil {
		return Entity{}, err
	}

	for _, te := range tree.Entries {
		if !samePath(te.Path, rel) {
			continue
		}

		switch te.Kind {
		case ghapi.EntryBlob:
			return treeEntity(KindFile, owner, repo, te.Path, te.Sha, te.Size), nil
		case ghapi.EntryTree:
			return treeEntity(KindFolder, owner, repo, te.Path, te.Sha, 0), nil
		}
	}

	if tree.Truncated {
		return Entity{}, fmt.Errorf("%s/%s/%s not in truncated tree: %w", owner, repo, rel, ErrTooLarge)
	}

	return Entity{}, fmt.Errorf("%s/%s/%s: %w", owner, repo, rel, ErrNotFound)
}
