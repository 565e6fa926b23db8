package namespace

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tonimelisma/ghdrive/internal/ghapi"
)

// Remote is the GitHub surface a Drive needs. *ghapi.Client satisfies it.
type Remote interface {
	CurrentUser(ctx context.Context) (ghapi.Account, error)
	GetUser(ctx context.Context, login string) (ghapi.Account, error)
	GetOrg(ctx context.Context, login string) (ghapi.Account, error)
	ListOrgs(ctx context.Context) ([]ghapi.Account, error)
	ListRepos(ctx context.Context, kind ghapi.AccountKind, owner string) ([]ghapi.Repository, error)
	GetRepo(ctx context.Context, owner, name string) (ghapi.Repository, error)
	HeadCommit(ctx context.Context, owner, repo string) (string, error)
	GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (ghapi.Tree, error)
	GetBlob(ctx context.Context, owner, repo, path string) (ghapi.Blob, error)
	CreateFile(ctx context.Context, owner, repo, path, message string, content []byte) (string, error)
	UpdateFile(ctx context.Context, owner, repo, path, message, sha string, content []byte) (string, error)
	DeleteFile(ctx context.Context, owner, repo, path, message, sha string) error
	CreateRepo(ctx context.Context, kind ghapi.AccountKind, owner, name string) (ghapi.Repository, error)
	DeleteRepo(ctx context.Context, owner, name string) error
}

// BlobStore caches file contents by git blob SHA. Implementations must
// be safe for concurrent use.
type BlobStore interface {
	Get(ctx context.Context, sha string) ([]byte, bool, error)
	Put(ctx context.Context, sha string, content []byte) error
}

// DefaultPlaceholder is the marker file committed to materialize an
// otherwise empty folder; git does not track empty directories.
const DefaultPlaceholder = ".gitkeep"

const defaultCommitPrefix = "ghdrive"

// Options configures a Drive. Zero values select defaults.
type Options struct {
	Placeholder  string    // marker file name for CreateDirectory
	CommitPrefix string    // prefix of generated commit messages
	Blobs        BlobStore // optional content cache
	MaxBlobSize  int64     // files larger than this bypass Blobs; 0 = no limit
	Logger       *slog.Logger
}

// Drive is a session over one authenticated GitHub identity. It owns the
// entity cache; all operations are safe for concurrent use.
type Drive struct {
	remote       Remote
	cache        *Cache
	blobs        BlobStore
	maxBlobSize  int64
	placeholder  string
	commitPrefix string
	sessionID    string
	logger       *slog.Logger
	flight       singleflight.Group

	// gen counts invalidations. Lookups that started before a mutation
	// evicted entries must not write their results back.
	gen atomic.Uint64
}

// New creates a Drive backed by remote.
func New(remote Remote, opts Options) *Drive {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	placeholder := opts.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	prefix := opts.CommitPrefix
	if prefix == "" {
		prefix = defaultCommitPrefix
	}

	sessionID := uuid.NewString()

	return &Drive{
		remote:       remote,
		cache:        NewCache(),
		blobs:        opts.Blobs,
		maxBlobSize:  opts.MaxBlobSize,
		placeholder:  placeholder,
		commitPrefix: prefix,
		sessionID:    sessionID,
		logger:       logger.With(slog.String("session_id", sessionID)),
	}
}

// Cache exposes the drive's entity cache.
func (d *Drive) Cache() *Cache {
	return d.cache
}

// SessionID identifies this drive in log output.
func (d *Drive) SessionID() string {
	return d.sessionID
}

// Placeholder is the marker file name used for new folders.
func (d *Drive) Placeholder() string {
	return d.placeholder
}

// kindOps are the per-variant capabilities. A nil children func means
// the kind cannot contain anything.
type kindOps struct {
	children func(d *Drive, ctx context.Context, e Entity) ([]Entity, error)
	exists   func(d *Drive, ctx context.Context, e Entity) (bool, error)
}

var kindTable = [...]kindOps{
	KindInvalid: {},
	KindRoot:    {children: (*Drive).rootChildren, exists: (*Drive).rootExists},
	KindUser:    {children: (*Drive).ownerChildren, exists: (*Drive).ownerExists},
	KindOrg:     {children: (*Drive).ownerChildren, exists: (*Drive).ownerExists},
	KindRepo:    {children: (*Drive).repoChildren, exists: (*Drive).repoExists},
	KindFolder:  {children: (*Drive).folderChildren, exists: (*Drive).treeEntryExists},
	KindFile:    {exists: (*Drive).treeEntryExists},
}

func opsFor(k Kind) kindOps {
	if k < 0 || int(k) >= len(kindTable) {
		return kindOps{}
	}

	return kindTable[k]
}

// Children lists the immediate children of e. Every returned entity is
// also written to the cache.
func (d *Drive) Children(ctx context.Context, e Entity) ([]Entity, error) {
	ops := opsFor(e.Kind)
	if ops.children == nil {
		return nil, fmt.Errorf("namespace: listing %q (%s): %w", e.VirtualPath(), e.Kind, ErrNotDir)
	}

	gen := d.generation()

	children, err := ops.children(d, ctx, e)
	if err != nil {
		return nil, fmt.Errorf("namespace: listing %q: %w", e.VirtualPath(), err)
	}

	parent := e.VirtualPath()
	out := children[:0]

	for _, c := range children {
		if parentPath(c.VirtualPath()) != parent {
			d.logger.Warn("dropping non-immediate child",
				slog.String("parent", parent), slog.String("child", c.VirtualPath()))

			continue
		}

		d.cacheIfCurrent(gen, c)
		out = append(out, c)
	}

	d.logger.Debug("listed children", slog.String("path", parent), slog.Int("count", len(out)))

	return out, nil
}

// Exists asks the remote whether e is still present. It never consults
// the cache.
func (d *Drive) Exists(ctx context.Context, e Entity) (bool, error) {
	ops := opsFor(e.Kind)
	if ops.exists == nil {
		return false, nil
	}

	ok, err := ops.exists(d, ctx, e)
	if err != nil {
		return false, fmt.Errorf("namespace: probing %q: %w", e.VirtualPath(), err)
	}

	return ok, nil
}

func (d *Drive) generation() uint64 {
	return d.gen.Load()
}

// cacheIfCurrent stores entities fetched by a lookup that started at
// generation gen, unless a mutation has invalidated entries since.
func (d *Drive) cacheIfCurrent(gen uint64, entities ...Entity) {
	if d.gen.Load() != gen {
		d.logger.Debug("skipping cache fill after concurrent mutation", slog.Int("entities", len(entities)))
		return
	}

	for _, e := range entities {
		d.cache.Put(e)
	}
}

func (d *Drive) commitMessage(op, vp string) string {
	return fmt.Sprintf("%s: %s %s", d.commitPrefix, op, vp)
}
