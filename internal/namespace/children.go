package namespace

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonimelisma/ghdrive/internal/ghapi"
)

func (d *Drive) rootChildren(ctx context.Context, _ Entity) ([]Entity, error) {
	orgs, err := d.remote.ListOrgs(ctx)
	if err != nil {
		return nil, err
	}

	me, err := d.remote.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Entity, 0, len(orgs)+1)
	for _, o := range orgs {
		out = append(out, ownerEntity(KindOrg, o.Login))
	}

	return append(out, ownerEntity(KindUser, me.Login)), nil
}

func (d *Drive) ownerChildren(ctx context.Context, e Entity) ([]Entity, error) {
	kind := ghapi.AccountUser
	if e.Kind == KindOrg {
		kind = ghapi.AccountOrg
	}

	repos, err := d.remote.ListRepos(ctx, kind, e.Name)
	if err != nil {
		return nil, err
	}

	out := make([]Entity, 0, len(repos))
	for _, r := range repos {
		out = append(out, repoEntity(e.Name, r.Name))
	}

	return out, nil
}

func (d *Drive) repoChildren(ctx context.Context, e Entity) ([]Entity, error) {
	head, err := d.remote.HeadCommit(ctx, e.Owner, e.Name)
	if err != nil {
		if errors.Is(err, ghapi.ErrEmptyRepository) {
			return []Entity{}, nil
		}

		return nil, err
	}

	return d.listTree(ctx, e.Owner, e.Name, "", head)
}

func (d *Drive) folderChildren(ctx context.Context, e Entity) ([]Entity, error) {
	sha := e.Sha
	if sha == "" {
		fresh, err := d.Resolve(ctx, e.VirtualPath())
		if err != nil {
			return nil, err
		}

		if fresh.Kind != KindFolder {
			return nil, fmt.Errorf("%q is now a %s: %w", e.VirtualPath(), fresh.Kind, ErrNotDir)
		}

		sha = fresh.Sha
	}

	return d.listTree(ctx, e.Owner, e.Repo, e.Path, sha)
}

// listTree lists one level of the tree at sha, placing entries under the
// repo-relative directory dir ("" for the repository root). Submodule
// pointers are skipped.
func (d *Drive) listTree(ctx context.Context, owner, repo, dir, sha string) ([]Entity, error) {
	tree, err := d.remote.GetTree(ctx, owner, repo, sha, false)
	if err != nil {
		return nil, err
	}

	if tree.Truncated {
		return nil, fmt.Errorf("%d entries returned for %s/%s/%s: %w", len(tree.Entries), owner, repo, dir, ErrTooLarge)
	}

	out := make([]Entity, 0, len(tree.Entries))

	for _, te := range tree.Entries {
		rel := te.Path
		if dir != "" {
			rel = dir + "/" + te.Path
		}

		switch te.Kind {
		case ghapi.EntryBlob:
			out = append(out, treeEntity(KindFile, owner, repo, rel, te.Sha, te.Size))
		case ghapi.EntryTree:
			out = append(out, treeEntity(KindFolder, owner, repo, rel, te.Sha, 0))
		}
	}

	return out, nil
}

func (d *Drive) rootExists(context.Context, Entity) (bool, error) {
	return true, nil
}

func (d *Drive) ownerExists(ctx context.Context, e Entity) (bool, error) {
	class, err := d.ClassifyOwner(ctx, e.Name)
	if err != nil {
		return false, err
	}

	switch e.Kind {
	case KindOrg:
		return class == OwnerOrg, nil
	default:
		return class == OwnerUser, nil
	}
}

func (d *Drive) repoExists(ctx context.Context, e Entity) (bool, error) {
	_, err := d.remote.GetRepo(ctx, e.Owner, e.Name)

	return probeOutcome(err)
}

func (d *Drive) treeEntryExists(ctx context.Context, e Entity) (bool, error) {
	found, err := d.findInTree(ctx, e.Owner, e.Repo, e.Path)

	ok, err := probeOutcome(err)
	if err != nil || !ok {
		return false, err
	}

	return found.Kind == e.Kind, nil
}
