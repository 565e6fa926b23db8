package namespace

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/tonimelisma/ghdrive/internal/ghapi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeRepo struct {
	files    map[string][]byte // repo-relative path -> content
	version  int
	truncate bool
}

type treeRef struct {
	repo string // owner/name
	dir  string
}

// fakeRemote is an in-memory GitHub. Files live in flat maps; trees are
// derived on demand. Every call is counted by method name.
type fakeRemote struct {
	mu sync.Mutex

	me    string
	orgs  []string
	users map[string]bool
	repos map[string]*fakeRepo
	trees map[string]treeRef

	// flatten makes non-recursive tree listings return nested entries too.
	flatten bool
	orgErr  error

	// afterTree runs once, outside the lock, after the next GetTree has
	// built its answer.
	afterTree func()

	calls     map[string]int
	mutations int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		me:    "alice",
		users: map[string]bool{"alice": true},
		repos: make(map[string]*fakeRepo),
		trees: make(map[string]treeRef),
		calls: make(map[string]int),
	}
}

func (f *fakeRemote) addOrg(login string) {
	f.orgs = append(f.orgs, login)
}

func (f *fakeRemote) addUser(login string) {
	f.users[login] = true
}

// addRepo registers owner/name with the given files (path -> content).
func (f *fakeRemote) addRepo(owner, name string, files map[string]string) *fakeRepo {
	r := &fakeRepo{files: make(map[string][]byte)}
	for p, c := range files {
		r.files[p] = []byte(c)
	}

	f.repos[owner+"/"+name] = r

	return r
}

func (f *fakeRemote) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method]
}

func (f *fakeRemote) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		n += c
	}

	return n
}

func (f *fakeRemote) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.mutations
}

// content returns a file's stored bytes, for assertions.
func (f *fakeRemote) content(owner, repo, path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.repos[owner+"/"+repo]
	if !ok {
		return nil, false
	}

	c, ok := r.files[path]

	return c, ok
}

func (f *fakeRemote) hit(method string) {
	f.calls[method]++
}

func apiErr(status int, sentinel error, msg string) error {
	return &ghapi.APIError{StatusCode: status, Message: msg, Err: sentinel}
}

func notFound(what string) error {
	return apiErr(http.StatusNotFound, ghapi.ErrNotFound, what+" not found")
}

func (f *fakeRemote) isOrg(login string) bool {
	for _, o := range f.orgs {
		if o == login {
			return true
		}
	}

	return false
}

func (f *fakeRemote) CurrentUser(context.Context) (ghapi.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CurrentUser")

	return ghapi.Account{Login: f.me, Kind: ghapi.AccountUser}, nil
}

func (f *fakeRemote) GetUser(_ context.Context, login string) (ghapi.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetUser")

	switch {
	case f.users[login]:
		return ghapi.Account{Login: login, Kind: ghapi.AccountUser}, nil
	case f.isOrg(login):
		return ghapi.Account{Login: login, Kind: ghapi.AccountOrg}, nil
	default:
		return ghapi.Account{}, notFound("user " + login)
	}
}

func (f *fakeRemote) GetOrg(_ context.Context, login string) (ghapi.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetOrg")

	if f.orgErr != nil {
		return ghapi.Account{}, f.orgErr
	}

	if !f.isOrg(login) {
		return ghapi.Account{}, notFound("org " + login)
	}

	return ghapi.Account{Login: login, Kind: ghapi.AccountOrg}, nil
}

func (f *fakeRemote) ListOrgs(context.Context) ([]ghapi.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ListOrgs")

	out := make([]ghapi.Account, 0, len(f.orgs))
	for _, o := range f.orgs {
		out = append(out, ghapi.Account{Login: o, Kind: ghapi.AccountOrg})
	}

	return out, nil
}

func (f *fakeRemote) ListRepos(_ context.Context, _ ghapi.AccountKind, owner string) ([]ghapi.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ListRepos")

	var out []ghapi.Repository

	for key := range f.repos {
		o, name, _ := strings.Cut(key, "/")
		if o == owner {
			out = append(out, ghapi.Repository{Owner: o, Name: name, DefaultBranch: "main"})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (f *fakeRemote) GetRepo(_ context.Context, owner, name string) (ghapi.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetRepo")

	_, ok := f.repos[owner+"/"+name]
	if !ok {
		return ghapi.Repository{}, notFound("repository " + owner + "/" + name)
	}

	return ghapi.Repository{Owner: owner, Name: name, DefaultBranch: "main"}, nil
}

func (f *fakeRemote) HeadCommit(_ context.Context, owner, repo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("HeadCommit")

	key := owner + "/" + repo

	r, ok := f.repos[key]
	if !ok {
		return "", notFound("repository " + key)
	}

	if len(r.files) == 0 {
		return "", fmt.Errorf("head of %s: %w", key, ghapi.ErrEmptyRepository)
	}

	sha := fmt.Sprintf("commit:%s:%d", key, r.version)
	f.trees[sha] = treeRef{repo: key}

	return sha, nil
}

func (f *fakeRemote) GetTree(_ context.Context, _, _, sha string, recursive bool) (ghapi.Tree, error) {
	tree, err := f.getTree(sha, recursive)

	f.mu.Lock()
	hook := f.afterTree
	f.afterTree = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	return tree, err
}

func (f *fakeRemote) getTree(sha string, recursive bool) (ghapi.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetTree")

	ref, ok := f.trees[sha]
	if !ok {
		return ghapi.Tree{}, notFound("tree " + sha)
	}

	r, ok := f.repos[ref.repo]
	if !ok {
		return ghapi.Tree{}, notFound("repository " + ref.repo)
	}

	entries := f.entries(ref, r, recursive || f.flatten)

	return ghapi.Tree{Sha: sha, Entries: entries, Truncated: r.truncate}, nil
}

// entries lists the tree under ref.dir with paths relative to it, the
// way GitHub returns them for a subtree SHA.
func (f *fakeRemote) entries(ref treeRef, r *fakeRepo, recursive bool) []ghapi.TreeEntry {
	prefix := ""
	if ref.dir != "" {
		prefix = ref.dir + "/"
	}

	seen := make(map[string]bool)

	var out []ghapi.TreeEntry

	for p, content := range r.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}

		rest := strings.TrimPrefix(p, prefix)
		segs := strings.Split(rest, "/")

		for i := 1; i < len(segs); i++ {
			if i > 1 && !recursive {
				break
			}

			dir := strings.Join(segs[:i], "/")
			if seen[dir] {
				continue
			}

			seen[dir] = true
			sha := fmt.Sprintf("tree:%s:%s:%d", ref.repo, prefix+dir, r.version)
			f.trees[sha] = treeRef{repo: ref.repo, dir: prefix + dir}
			out = append(out, ghapi.TreeEntry{Path: dir, Kind: ghapi.EntryTree, Sha: sha})
		}

		if len(segs) == 1 || recursive {
			out = append(out, ghapi.TreeEntry{
				Path: rest, Kind: ghapi.EntryBlob, Sha: GitBlobSHA(content), Size: int64(len(content)),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out
}

func (f *fakeRemote) GetBlob(_ context.Context, owner, repo, path string) (ghapi.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetBlob")

	r, ok := f.repos[owner+"/"+repo]
	if !ok {
		return ghapi.Blob{}, notFound("repository")
	}

	c, ok := r.files[path]
	if !ok {
		return ghapi.Blob{}, notFound(path)
	}

	return ghapi.Blob{Content: append([]byte(nil), c...), Sha: GitBlobSHA(c)}, nil
}

func (f *fakeRemote) mutableRepo(owner, repo string) (*fakeRepo, error) {
	f.mutations++

	r, ok := f.repos[owner+"/"+repo]
	if !ok {
		return nil, notFound("repository " + owner + "/" + repo)
	}

	return r, nil
}

func (f *fakeRemote) CreateFile(_ context.Context, owner, repo, path, _ string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateFile")

	r, err := f.mutableRepo(owner, repo)
	if err != nil {
		return "", err
	}

	if _, ok := r.files[path]; ok {
		return "", apiErr(http.StatusUnprocessableEntity, ghapi.ErrUnprocessable, `"sha" wasn't supplied`)
	}

	r.files[path] = append([]byte(nil), content...)
	r.version++

	return GitBlobSHA(content), nil
}

func (f *fakeRemote) UpdateFile(_ context.Context, owner, repo, path, _, sha string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("UpdateFile")

	r, err := f.mutableRepo(owner, repo)
	if err != nil {
		return "", err
	}

	old, ok := r.files[path]
	if !ok {
		return "", notFound(path)
	}

	if GitBlobSHA(old) != sha {
		return "", apiErr(http.StatusConflict, ghapi.ErrConflict, path+" does not match "+sha)
	}

	r.files[path] = append([]byte(nil), content...)
	r.version++

	return GitBlobSHA(content), nil
}

func (f *fakeRemote) DeleteFile(_ context.Context, owner, repo, path, _, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("DeleteFile")

	r, err := f.mutableRepo(owner, repo)
	if err != nil {
		return err
	}

	old, ok := r.files[path]
	if !ok {
		return notFound(path)
	}

	if GitBlobSHA(old) != sha {
		return apiErr(http.StatusConflict, ghapi.ErrConflict, path+" does not match "+sha)
	}

	delete(r.files, path)
	r.version++

	return nil
}

func (f *fakeRemote) CreateRepo(_ context.Context, _ ghapi.AccountKind, owner, name string) (ghapi.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateRepo")
	f.mutations++

	key := owner + "/" + name
	if _, ok := f.repos[key]; ok {
		return ghapi.Repository{}, apiErr(http.StatusUnprocessableEntity, ghapi.ErrUnprocessable, "name already exists")
	}

	f.repos[key] = &fakeRepo{files: make(map[string][]byte)}

	return ghapi.Repository{Owner: owner, Name: name, DefaultBranch: "main"}, nil
}

func (f *fakeRemote) DeleteRepo(_ context.Context, owner, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("DeleteRepo")
	f.mutations++

	key := owner + "/" + name
	if _, ok := f.repos[key]; !ok {
		return notFound("repository " + key)
	}

	delete(f.repos, key)

	return nil
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (m *memBlobs) Get(_ context.Context, sha string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	c, ok := m.data[sha]

	return c, ok, nil
}

func (m *memBlobs) Put(_ context.Context, sha string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[sha] = append([]byte(nil), content...)

	return nil
}

func (m *memBlobs) has(sha string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.data[sha]

	return ok
}

func newTestDrive(t *testing.T, f *fakeRemote) *Drive {
	t.Helper()

	return New(f, Options{Logger: testLogger()})
}

// widgets builds the octo/widgets fixture used across tests.
func widgets() *fakeRemote {
	f := newFakeRemote()
	f.addOrg("octo")
	f.addRepo("octo", "widgets", map[string]string{
		"README.md":      "# widgets\n",
		"src/main.go":    "package main\n",
		"src/util/io.go": "package util\n",
	})

	return f
}

var _ Remote = (*fakeRemote)(nil)
