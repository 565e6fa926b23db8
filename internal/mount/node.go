package mount

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// node is one namespace path. It holds no entity state; every operation
// resolves the path again through the Drive, whose cache keeps that cheap.
type node struct {
	fs.Inode
	fsys *filesystem
	path string
	dir  bool
}

var (
	_ fs.InodeEmbedder = (*node)(nil)
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeSetattrer = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeRmdirer   = (*node)(nil)
)

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := childOf(n.path, name)

	if h := n.fsys.pendingWriter(p); h != nil {
		n.fsys.fileAttr(h.size(), &out.Attr)
		return n.newChild(ctx, p, false), 0
	}

	e, err := n.fsys.ns.Resolve(ctx, p)
	if err != nil {
		return nil, n.fsys.fail("lookup", p, err)
	}

	n.fsys.entityAttr(e, &out.Attr)

	return n.newChild(ctx, p, e.IsDir()), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	e, err := n.fsys.ns.Resolve(ctx, n.path)
	if err != nil {
		return nil, n.fsys.fail("readdir", n.path, err)
	}

	children, err := n.fsys.ns.Children(ctx, e)
	if err != nil {
		return nil, n.fsys.fail("readdir", n.path, err)
	}

	entries := dirEntries(children)

	seen := make(map[string]bool, len(entries))
	for _, de := range entries {
		seen[de.Name] = true
	}

	for _, h := range n.fsys.pendingIn(n.path) {
		name := baseOf(h.path)
		if !seen[name] {
			entries = append(entries, fuse.DirEntry{Name: name, Mode: syscall.S_IFREG, Ino: inodeNumber(h.path, false)})
		}
	}

	return fs.NewListDirStream(entries), 0
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if h, ok := f.(*bufferHandle); ok && h.writable {
		return h.Getattr(ctx, out)
	}

	if h := n.fsys.pendingWriter(n.path); h != nil {
		n.fsys.fileAttr(h.size(), &out.Attr)
		return 0
	}

	e, err := n.fsys.ns.Resolve(ctx, n.path)
	if err != nil {
		return n.fsys.fail("getattr", n.path, err)
	}

	n.fsys.entityAttr(e, &out.Attr)

	return 0
}

// Setattr supports truncation only; mode, owner, and time changes are
// accepted and ignored since git does not track them.
func (n *node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if errno := n.truncate(ctx, f, size); errno != 0 {
			return errno
		}
	}

	return n.Getattr(ctx, f, out)
}

func (n *node) truncate(ctx context.Context, f fs.FileHandle, size uint64) syscall.Errno {
	if n.fsys.readOnly {
		return syscall.EROFS
	}

	if n.dir {
		return syscall.EISDIR
	}

	if h, ok := f.(*bufferHandle); ok && h.writable {
		h.truncate(size)
		return 0
	}

	if h := n.fsys.pendingWriter(n.path); h != nil {
		h.truncate(size)
		return 0
	}

	data, _, err := n.fsys.ns.ReadFile(ctx, n.path)
	if err != nil {
		return n.fsys.fail("truncate", n.path, err)
	}

	if _, err := n.fsys.ns.WriteFile(ctx, n.path, resize(data, size)); err != nil {
		return n.fsys.fail("truncate", n.path, err)
	}

	return 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return n.openWriter(ctx, flags)
	}

	e, err := n.fsys.ns.Resolve(ctx, n.path)
	if err != nil {
		return nil, 0, n.fsys.fail("open", n.path, err)
	}

	if e.Kind != namespace.KindFile {
		return nil, 0, syscall.EISDIR
	}

	if n.fsys.streams(e) {
		return n.openStream(e)
	}

	data, _, err := n.fsys.ns.ReadFile(ctx, n.path)
	if err != nil {
		return nil, 0, n.fsys.fail("open", n.path, err)
	}

	return newReader(n.fsys, n.path, data), 0, 0
}

func (n *node) openWriter(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if n.fsys.readOnly {
		return nil, 0, syscall.EROFS
	}

	truncated := flags&syscall.O_TRUNC != 0

	var data []byte

	if !truncated {
		content, _, err := n.fsys.ns.ReadFile(ctx, n.path)
		if err != nil {
			return nil, 0, n.fsys.fail("open", n.path, err)
		}

		data = content
	}

	return newWriter(n.fsys, n.path, data, false, truncated), fuse.FOPEN_DIRECT_IO, 0
}

// openStream binds the ranged reader to the mount's context; the open
// request's own context ends as soon as Open returns.
func (n *node) openStream(e namespace.Entity) (fs.FileHandle, uint32, syscall.Errno) {
	ctx, cancel := context.WithCancel(n.fsys.ctx)

	r, err := n.fsys.raw(ctx, e)
	if err != nil {
		cancel()
		return nil, 0, n.fsys.fail("open", n.path, err)
	}

	n.fsys.logger.Debug("streaming file", slog.String("path", n.path), slog.Int64("size", e.Size))

	return &streamHandle{r: r, size: e.Size, cancel: cancel}, 0, 0
}

// Create defers the commit to Flush so the file lands with its content
// in a single commit.
func (n *node) Create(
	ctx context.Context, name string, _ uint32, _ uint32, out *fuse.EntryOut,
) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	if n.fsys.readOnly {
		return nil, nil, 0, syscall.EROFS
	}

	p := childOf(n.path, name)

	// Files live inside a repository.
	if depthOf(n.path) < 2 {
		return nil, nil, 0, syscall.ENOTSUP
	}

	h := newWriter(n.fsys, p, nil, true, false)
	n.fsys.fileAttr(0, &out.Attr)

	return n.newChild(ctx, p, false), h, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Mkdir(ctx context.Context, name string, _ uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fsys.readOnly {
		return nil, syscall.EROFS
	}

	p := childOf(n.path, name)

	e, err := n.fsys.ns.CreateDirectory(ctx, p)
	if err != nil {
		return nil, n.fsys.fail("mkdir", p, err)
	}

	n.fsys.entityAttr(e, &out.Attr)

	return n.newChild(ctx, p, true), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	if n.fsys.readOnly {
		return syscall.EROFS
	}

	p := childOf(n.path, name)

	e, err := n.fsys.ns.Resolve(ctx, p)
	if err != nil {
		return n.fsys.fail("unlink", p, err)
	}

	if e.IsDir() {
		return syscall.EISDIR
	}

	if err := n.fsys.ns.DeleteEntry(ctx, p, false); err != nil {
		return n.fsys.fail("unlink", p, err)
	}

	return 0
}

// Rmdir removes a folder whose only content is the placeholder marker.
// Repositories and owners are never removed through the filesystem.
func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	if n.fsys.readOnly {
		return syscall.EROFS
	}

	p := childOf(n.path, name)

	e, err := n.fsys.ns.Resolve(ctx, p)
	if err != nil {
		return n.fsys.fail("rmdir", p, err)
	}

	if !e.IsDir() {
		return syscall.ENOTDIR
	}

	if e.Kind != namespace.KindFolder {
		return syscall.EPERM
	}

	children, err := n.fsys.ns.Children(ctx, e)
	if err != nil {
		return n.fsys.fail("rmdir", p, err)
	}

	placeholder := n.fsys.ns.Placeholder()
	for _, c := range children {
		if c.Kind != namespace.KindFile || c.Name != placeholder {
			return syscall.ENOTEMPTY
		}
	}

	if err := n.fsys.ns.DeleteEntry(ctx, p, true); err != nil {
		return n.fsys.fail("rmdir", p, err)
	}

	return 0
}

func (n *node) newChild(ctx context.Context, p string, dir bool) *fs.Inode {
	mode := uint32(syscall.S_IFREG)
	if dir {
		mode = syscall.S_IFDIR
	}

	return n.NewInode(ctx, &node{fsys: n.fsys, path: p, dir: dir}, fs.StableAttr{
		Mode: mode,
		Ino:  inodeNumber(p, dir),
	})
}

func (f *filesystem) streams(e namespace.Entity) bool {
	return f.raw != nil && f.streamThreshold > 0 && e.Size > f.streamThreshold
}

func (f *filesystem) entityAttr(e namespace.Entity, out *fuse.Attr) {
	if e.IsDir() {
		out.Mode = syscall.S_IFDIR | f.perm(0o755)
		out.Nlink = 2
		out.Owner = f.owner

		return
	}

	f.fileAttr(e.Size, out)
}

func (f *filesystem) fileAttr(size int64, out *fuse.Attr) {
	out.Mode = syscall.S_IFREG | f.perm(0o644)
	out.Nlink = 1
	out.Size = uint64(size) //nolint:gosec // sizes are never negative
	out.Blocks = (out.Size + 511) / 512
	out.Owner = f.owner
}

// perm strips write bits on a read-only mount.
func (f *filesystem) perm(mode uint32) uint32 {
	if f.readOnly {
		return mode &^ 0o222
	}

	return mode
}

func dirEntries(children []namespace.Entity) []fuse.DirEntry {
	entries := make([]fuse.DirEntry, 0, len(children))

	for _, c := range children {
		mode := uint32(syscall.S_IFREG)
		if c.IsDir() {
			mode = syscall.S_IFDIR
		}

		entries = append(entries, fuse.DirEntry{
			Name: c.Name,
			Mode: mode,
			Ino:  inodeNumber(c.VirtualPath(), c.IsDir()),
		})
	}

	return entries
}

// inodeNumber derives a stable inode number from the path and type, so
// repeated lookups of one path land on the same kernel inode. 1 is
// reserved for the root.
func inodeNumber(p string, dir bool) uint64 {
	h := fnv.New64a()
	if dir {
		h.Write([]byte("d:"))
	} else {
		h.Write([]byte("f:"))
	}

	h.Write([]byte(p))

	ino := h.Sum64()
	if ino <= 1 {
		ino += 2
	}

	return ino
}

func childOf(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "/" + name
}

func parentOf(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}

	return ""
}

func baseOf(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

func depthOf(p string) int {
	if p == "" {
		return 0
	}

	return strings.Count(p, "/") + 1
}
