// Package namespace maps GitHub accounts, repositories, trees, and blobs
// onto a slash-separated path hierarchy:
//
//	""                       root (the authenticated identity's view)
//	owner                    user or organization
//	owner/repo               repository
//	owner/repo/dir/file.txt  folder or file on the default branch
//
// A Drive resolves paths to typed entities, enumerates children lazily,
// and performs mutations, keeping a path-keyed cache consistent with
// every write it makes.
package namespace

import "strings"

// Kind tags the variant of an Entity.
type Kind int

// Entity kinds, ordered by depth in the hierarchy.
const (
	KindInvalid Kind = iota
	KindRoot
	KindUser
	KindOrg
	KindRepo
	KindFolder
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindUser:
		return "user"
	case KindOrg:
		return "org"
	case KindRepo:
		return "repo"
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "invalid"
	}
}

// Entity is one node of the namespace. It is a plain value: resolving a
// path again after a remote change yields a new Entity rather than
// modifying an old one.
//
// Field use by kind:
//
//	Root          none
//	User, Org     Name (login)
//	Repo          Owner, Name
//	Folder, File  Owner, Repo, Path (repo-relative), Name (last segment), Sha
//	File          Size, when the listing reported it
type Entity struct {
	Kind  Kind
	Name  string
	Owner string
	Repo  string
	Path  string
	Sha   string
	Size  int64
}

// VirtualPath is the entity's address in the namespace and its cache key.
func (e Entity) VirtualPath() string {
	switch e.Kind {
	case KindRoot:
		return ""
	case KindUser, KindOrg:
		return e.Name
	case KindRepo:
		return e.Owner + "/" + e.Name
	case KindFolder, KindFile:
		return e.Owner + "/" + e.Repo + "/" + e.Path
	default:
		return ""
	}
}

// IsDir reports whether the entity can have children.
func (e Entity) IsDir() bool {
	switch e.Kind {
	case KindRoot, KindUser, KindOrg, KindRepo, KindFolder:
		return true
	default:
		return false
	}
}

// IsOwner reports whether the entity is a user or organization.
func (e Entity) IsOwner() bool {
	return e.Kind == KindUser || e.Kind == KindOrg
}

func rootEntity() Entity {
	return Entity{Kind: KindRoot}
}

func ownerEntity(kind Kind, login string) Entity {
	return Entity{Kind: kind, Name: login}
}

func repoEntity(owner, name string) Entity {
	return Entity{Kind: KindRepo, Owner: owner, Name: name}
}

// treeEntity builds a Folder or File inside owner/repo at the
// repo-relative path rel.
func treeEntity(kind Kind, owner, repo, rel, sha string, size int64) Entity {
	name := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		name = rel[i+1:]
	}

	e := Entity{Kind: kind, Name: name, Owner: owner, Repo: repo, Path: rel, Sha: sha}
	if kind == KindFile {
		e.Size = size
	}

	return e
}
