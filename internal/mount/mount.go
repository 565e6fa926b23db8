// Package mount exposes a namespace Drive as a FUSE filesystem. Every
// directory level of the namespace (root, owners, repositories, folders)
// becomes a directory, and repository files become regular files.
//
// Writes are buffered per open file and committed in one contents-API
// commit when the descriptor is flushed. Reads of files above the stream
// threshold go through ranged requests against the raw content host
// instead of downloading the whole blob.
package mount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// Namespace is the part of *namespace.Drive the filesystem uses.
type Namespace interface {
	Resolve(ctx context.Context, p string) (namespace.Entity, error)
	Children(ctx context.Context, e namespace.Entity) ([]namespace.Entity, error)
	ReadFile(ctx context.Context, p string) ([]byte, namespace.Entity, error)
	CreateFile(ctx context.Context, p string, content []byte) (namespace.Entity, error)
	WriteFile(ctx context.Context, p string, content []byte) (namespace.Entity, error)
	DeleteEntry(ctx context.Context, p string, recursive bool) error
	CreateDirectory(ctx context.Context, p string) (namespace.Entity, error)
	Placeholder() string
}

// RawOpener opens a random-access reader over a file's current content.
// The reader is used until ctx is canceled.
type RawOpener func(ctx context.Context, e namespace.Entity) (io.ReaderAt, error)

// DefaultAttrTimeout is how long the kernel may cache entries and
// attributes when Options.AttrTimeout is zero.
const DefaultAttrTimeout = time.Second

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is created if it does not exist.
	Mountpoint string

	Namespace Namespace

	// Raw is optional. Without it every read downloads the full blob.
	Raw RawOpener

	// StreamThreshold is the file size above which reads use Raw.
	// Zero disables streaming.
	StreamThreshold int64

	// ReadOnly rejects every mutation with EROFS.
	ReadOnly bool

	// AllowOther requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	AttrTimeout time.Duration

	// Debug logs every FUSE request.
	Debug bool

	Logger *slog.Logger
}

var (
	errNoMountpoint = errors.New("mount: mountpoint is required")
	errNoNamespace  = errors.New("mount: namespace is required")
)

// Mount mounts the namespace at opts.Mountpoint. ctx bounds streamed
// reads; cancel it only after the server has been unmounted. The
// caller must call Unmount on the returned server.
func Mount(ctx context.Context, opts Options) (*fuse.Server, error) {
	if opts.Mountpoint == "" {
		return nil, errNoMountpoint
	}

	if opts.Namespace == nil {
		return nil, errNoNamespace
	}

	if err := os.MkdirAll(opts.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("mount: creating mountpoint %s: %w", opts.Mountpoint, err)
	}

	fsys := newFilesystem(ctx, opts)

	attrTimeout := opts.AttrTimeout
	if attrTimeout <= 0 {
		attrTimeout = DefaultAttrTimeout
	}

	// Files can appear from other clients at any time, so misses are not cached.
	negativeTimeout := time.Duration(0)

	mountOpts := fuse.MountOptions{
		FsName:     "ghdrive",
		Name:       "ghdrive",
		AllowOther: opts.AllowOther,
		Debug:      opts.Debug,
	}
	if opts.ReadOnly {
		mountOpts.Options = append(mountOpts.Options, "ro")
	}

	server, err := fs.Mount(opts.Mountpoint, fsys.root(), &fs.Options{
		EntryTimeout:    &attrTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions:    mountOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("mount: mounting at %s: %w", opts.Mountpoint, err)
	}

	fsys.logger.Info("filesystem mounted",
		slog.String("mountpoint", opts.Mountpoint),
		slog.Bool("read_only", opts.ReadOnly),
	)

	return server, nil
}

// filesystem is the state shared by every node of one mount.
type filesystem struct {
	ctx             context.Context
	ns              Namespace
	raw             RawOpener
	streamThreshold int64
	readOnly        bool
	owner           fuse.Owner
	logger          *slog.Logger

	mu      sync.Mutex
	pending map[string]*bufferHandle // open writers keyed by path
}

func newFilesystem(ctx context.Context, opts Options) *filesystem {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &filesystem{
		ctx:             ctx,
		ns:              opts.Namespace,
		raw:             opts.Raw,
		streamThreshold: opts.StreamThreshold,
		readOnly:        opts.ReadOnly,
		owner:           fuse.Owner{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())}, //nolint:gosec // ids fit in uint32
		logger:          logger,
		pending:         make(map[string]*bufferHandle),
	}
}

func (f *filesystem) root() *node {
	return &node{fsys: f, dir: true}
}

// track registers h as the open writer for its path.
func (f *filesystem) track(h *bufferHandle) {
	f.mu.Lock()
	f.pending[h.path] = h
	f.mu.Unlock()
}

// forget drops h if it is still the registered writer for its path.
func (f *filesystem) forget(h *bufferHandle) {
	f.mu.Lock()
	if f.pending[h.path] == h {
		delete(f.pending, h.path)
	}
	f.mu.Unlock()
}

func (f *filesystem) pendingWriter(p string) *bufferHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pending[p]
}

// pendingIn lists open writers whose parent directory is dir.
func (f *filesystem) pendingIn(dir string) []*bufferHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*bufferHandle

	for p, h := range f.pending {
		if parentOf(p) == dir {
			out = append(out, h)
		}
	}

	return out
}
