package mount

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// bufferHandle holds a file's whole content in memory. Read-only opens
// of small files use it as a snapshot; write opens accumulate changes
// and commit them on Flush.
type bufferHandle struct {
	fsys *filesystem
	path string

	mu       sync.Mutex
	data     []byte
	writable bool
	create   bool // commit as a new file rather than an update
	dirty    bool
}

var (
	_ fs.FileReader    = (*bufferHandle)(nil)
	_ fs.FileWriter    = (*bufferHandle)(nil)
	_ fs.FileFlusher   = (*bufferHandle)(nil)
	_ fs.FileReleaser  = (*bufferHandle)(nil)
	_ fs.FileGetattrer = (*bufferHandle)(nil)
)

func newReader(fsys *filesystem, p string, data []byte) *bufferHandle {
	return &bufferHandle{fsys: fsys, path: p, data: data}
}

// newWriter returns a writable handle registered as the pending writer
// for p. A create handle is dirty from the start so that closing an
// empty new file still commits it.
func newWriter(fsys *filesystem, p string, data []byte, create, truncated bool) *bufferHandle {
	h := &bufferHandle{
		fsys:     fsys,
		path:     p,
		data:     data,
		writable: true,
		create:   create,
		dirty:    create || truncated,
	}
	fsys.track(h)

	return h
}

func (h *bufferHandle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), 0
	}

	n := copy(dest, h.data[off:])

	return fuse.ReadResultData(dest[:n]), 0
}

func (h *bufferHandle) Write(_ context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.writable {
		return 0, syscall.EBADF
	}

	end := off + int64(len(data))
	if end > int64(len(h.data)) {
		grown := make([]byte, end)
		copy(grown, h.data)
		h.data = grown
	}

	copy(h.data[off:], data)
	h.dirty = true

	return uint32(len(data)), 0 //nolint:gosec // bounded by the kernel's max write
}

// Flush commits buffered changes. The kernel calls it on every close of
// a descriptor, so a clean handle is a no-op.
func (h *bufferHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return 0
	}

	var err error
	if h.create {
		_, err = h.fsys.ns.CreateFile(ctx, h.path, h.data)
	} else {
		_, err = h.fsys.ns.WriteFile(ctx, h.path, h.data)
	}

	if err != nil {
		return h.fsys.fail("flush", h.path, err)
	}

	h.fsys.logger.Debug("committed file",
		slog.String("path", h.path), slog.Int("size", len(h.data)), slog.Bool("created", h.create))

	h.create = false
	h.dirty = false

	return 0
}

func (h *bufferHandle) Release(_ context.Context) syscall.Errno {
	if h.writable {
		h.fsys.forget(h)
	}

	return 0
}

func (h *bufferHandle) Getattr(_ context.Context, out *fuse.AttrOut) syscall.Errno {
	h.fsys.fileAttr(h.size(), &out.Attr)
	return 0
}

func (h *bufferHandle) size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return int64(len(h.data))
}

// truncate resizes the buffer, zero-filling when it grows.
func (h *bufferHandle) truncate(size uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.data = resize(h.data, size)
	h.dirty = true
}

func resize(data []byte, size uint64) []byte {
	if size <= uint64(len(data)) {
		return data[:size]
	}

	grown := make([]byte, size)
	copy(grown, data)

	return grown
}

// streamHandle serves reads of a large file through ranged requests.
type streamHandle struct {
	r      io.ReaderAt
	size   int64
	cancel context.CancelFunc
}

var (
	_ fs.FileReader   = (*streamHandle)(nil)
	_ fs.FileReleaser = (*streamHandle)(nil)
)

func (s *streamHandle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= s.size {
		return fuse.ReadResultData(nil), 0
	}

	n, err := s.r.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, syscall.EIO
	}

	return fuse.ReadResultData(dest[:n]), 0
}

func (s *streamHandle) Release(_ context.Context) syscall.Errno {
	s.cancel()
	return 0
}
