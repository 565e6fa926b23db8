package mount

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/tonimelisma/ghdrive/internal/namespace"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeNS is an in-memory Namespace keyed by virtual path.
type fakeNS struct {
	mu       sync.Mutex
	entities map[string]namespace.Entity
	content  map[string][]byte

	creates []string
	writes  []string
	deletes []string
	mkdirs  []string
}

func newFakeNS() *fakeNS {
	return &fakeNS{
		entities: make(map[string]namespace.Entity),
		content:  make(map[string][]byte),
	}
}

// addFile registers a file and every ancestor of it.
func (f *fakeNS) addFile(p, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.putFile(p, []byte(body))
}

func (f *fakeNS) addFolder(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ensureDirs(p)
}

func (f *fakeNS) putFile(p string, body []byte) {
	f.ensureDirs(parentOf(p))
	f.entities[p] = entityAt(namespace.KindFile, p, int64(len(body)))
	f.content[p] = body
}

func (f *fakeNS) ensureDirs(p string) {
	segs := strings.Split(p, "/")
	for i := range segs {
		sub := strings.Join(segs[:i+1], "/")
		if _, ok := f.entities[sub]; ok {
			continue
		}

		kind := namespace.KindFolder
		switch i {
		case 0:
			kind = namespace.KindUser
		case 1:
			kind = namespace.KindRepo
		}

		f.entities[sub] = entityAt(kind, sub, 0)
	}
}

func entityAt(kind namespace.Kind, p string, size int64) namespace.Entity {
	segs := strings.Split(p, "/")

	switch kind {
	case namespace.KindUser, namespace.KindOrg:
		return namespace.Entity{Kind: kind, Name: segs[0]}
	case namespace.KindRepo:
		return namespace.Entity{Kind: kind, Owner: segs[0], Name: segs[1]}
	default:
		return namespace.Entity{
			Kind:  kind,
			Owner: segs[0],
			Repo:  segs[1],
			Path:  strings.Join(segs[2:], "/"),
			Name:  segs[len(segs)-1],
			Sha:   fmt.Sprintf("sha-%s-%d", p, size),
			Size:  size,
		}
	}
}

func (f *fakeNS) Resolve(_ context.Context, p string) (namespace.Entity, error) {
	if p == "" {
		return namespace.Entity{Kind: namespace.KindRoot}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entities[p]
	if !ok {
		return namespace.Entity{}, fmt.Errorf("fake: resolving %q: %w", p, namespace.ErrNotFound)
	}

	return e, nil
}

func (f *fakeNS) Children(_ context.Context, e namespace.Entity) ([]namespace.Entity, error) {
	if !e.IsDir() {
		return nil, namespace.ErrNotDir
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	parent := e.VirtualPath()

	var out []namespace.Entity

	for p, c := range f.entities {
		if parentOf(p) == parent {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (f *fakeNS) ReadFile(_ context.Context, p string) ([]byte, namespace.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entities[p]
	if !ok {
		return nil, namespace.Entity{}, namespace.ErrNotFound
	}

	if e.Kind != namespace.KindFile {
		return nil, namespace.Entity{}, namespace.ErrNotFile
	}

	return append([]byte(nil), f.content[p]...), e, nil
}

func (f *fakeNS) CreateFile(_ context.Context, p string, content []byte) (namespace.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entities[p]; ok {
		return namespace.Entity{}, namespace.ErrAlreadyExists
	}

	f.creates = append(f.creates, p)
	f.putFile(p, append([]byte(nil), content...))

	return f.entities[p], nil
}

func (f *fakeNS) WriteFile(_ context.Context, p string, content []byte) (namespace.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, p)
	f.putFile(p, append([]byte(nil), content...))

	return f.entities[p], nil
}

func (f *fakeNS) DeleteEntry(_ context.Context, p string, recursive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entities[p]
	if !ok {
		return namespace.ErrNotFound
	}

	if e.IsDir() && !recursive {
		return namespace.ErrNotEmpty
	}

	f.deletes = append(f.deletes, p)

	for k := range f.entities {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(f.entities, k)
			delete(f.content, k)
		}
	}

	return nil
}

func (f *fakeNS) CreateDirectory(_ context.Context, p string) (namespace.Entity, error) {
	if depthOf(p) < 3 {
		return namespace.Entity{}, namespace.ErrUnsupported
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entities[p]; ok {
		return namespace.Entity{}, namespace.ErrAlreadyExists
	}

	f.mkdirs = append(f.mkdirs, p)
	f.putFile(p+"/.gitkeep", nil)

	return f.entities[p], nil
}

func (f *fakeNS) Placeholder() string {
	return ".gitkeep"
}

func (f *fakeNS) body(p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.content[p]

	return string(b), ok
}

// widgets is a small repository used across the tests.
func widgets() *fakeNS {
	ns := newFakeNS()
	ns.addFile("alice/widgets/README.md", "# widgets\n")
	ns.addFile("alice/widgets/src/main.go", "package main\n")
	ns.addFile("alice/widgets/empty/.gitkeep", "")

	return ns
}

func newTestFS(t *testing.T, ns Namespace, mutate func(*Options)) *filesystem {
	t.Helper()

	opts := Options{Namespace: ns, Logger: testLogger(t)}
	if mutate != nil {
		mutate(&opts)
	}

	return newFilesystem(context.Background(), opts)
}

func nodeAt(fsys *filesystem, p string, dir bool) *node {
	return &node{fsys: fsys, path: p, dir: dir}
}
