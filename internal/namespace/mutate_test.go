package namespace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prime resolves each path so it sits in the drive's cache.
func prime(t *testing.T, d *Drive, ps ...string) {
	t.Helper()

	for _, p := range ps {
		_, err := d.Resolve(context.Background(), p)
		require.NoError(t, err, p)
	}
}

func cached(d *Drive, p string) bool {
	_, ok := d.Cache().Get(p)
	return ok
}

func TestCreateFile(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	e, err := d.CreateFile(ctx, "octo/widgets/docs/guide.md", []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, KindFile, e.Kind)
	assert.Equal(t, "docs/guide.md", e.Path)
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", e.Sha)
	assert.Equal(t, int64(6), e.Size)
	assert.Equal(t, 1, f.mutationCount())

	got, ok := f.content("octo", "widgets", "docs/guide.md")
	require.True(t, ok)
	assert.Equal(t, "hello\n", string(got))

	before := f.totalCalls()

	again, err := d.Resolve(ctx, "octo/widgets/docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, e.Sha, again.Sha)
	assert.Equal(t, before, f.totalCalls(), "new file cached from the commit response")
}

func TestCreateFile_AlreadyExists(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	_, err := d.CreateFile(context.Background(), "octo/widgets/README.md", []byte("x"))
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Zero(t, f.mutationCount())

	_, err = d.CreateFile(context.Background(), "octo/widgets/src", []byte("x"))
	require.ErrorIs(t, err, ErrAlreadyExists, "folders count as existing paths")
	assert.Zero(t, f.mutationCount())
}

func TestCreateFile_MissingRepo(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	_, err := d.CreateFile(context.Background(), "octo/gadgets/a.txt", []byte("x"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.mutationCount())
}

func TestCreateFile_TooShallow(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	for _, p := range []string{"", "octo", "octo/widgets"} {
		_, err := d.CreateFile(context.Background(), p, []byte("x"))
		require.ErrorIs(t, err, ErrUnsupported, p)
	}

	assert.Zero(t, f.totalCalls())
}

func TestCreateFile_InvalidatesParentOnly(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	prime(t, d, "", "octo", "octo/widgets", "octo/widgets/README.md", "octo/widgets/src",
		"octo/widgets/src/util", "octo/widgets/src/util/io.go")

	_, err := d.CreateFile(ctx, "octo/widgets/src/new.go", []byte("package main\n"))
	require.NoError(t, err)

	assert.False(t, cached(d, "octo/widgets/src"), "parent folder's tree changed")

	for _, p := range []string{"", "octo", "octo/widgets", "octo/widgets/README.md", "octo/widgets/src/util", "octo/widgets/src/util/io.go"} {
		assert.True(t, cached(d, p), "%q should stay cached", p)
	}

	src, err := d.Resolve(ctx, "octo/widgets/src")
	require.NoError(t, err)

	kids, err := d.Children(ctx, src)
	require.NoError(t, err)
	assert.Contains(t, paths(kids), "octo/widgets/src/new.go")
}

func TestCreateFile_InvalidatesFolderAncestors(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	prime(t, d, "octo/widgets", "octo/widgets/src", "octo/widgets/src/util", "octo/widgets/src/main.go")

	_, err := d.CreateFile(context.Background(), "octo/widgets/src/util/x.go", nil)
	require.NoError(t, err)

	assert.False(t, cached(d, "octo/widgets/src/util"))
	assert.False(t, cached(d, "octo/widgets/src"))
	assert.True(t, cached(d, "octo/widgets"))
	assert.True(t, cached(d, "octo/widgets/src/main.go"))
}

func TestWriteFile_Update(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	old, err := d.Resolve(ctx, "octo/widgets/README.md")
	require.NoError(t, err)

	e, err := d.WriteFile(ctx, "octo/widgets/README.md", []byte("# gadgets\n"))
	require.NoError(t, err)
	assert.NotEqual(t, old.Sha, e.Sha)
	assert.Equal(t, 1, f.count("UpdateFile"))
	assert.Zero(t, f.count("CreateFile"))

	got, _ := f.content("octo", "widgets", "README.md")
	assert.Equal(t, "# gadgets\n", string(got))

	fresh, err := d.Resolve(ctx, "octo/widgets/README.md")
	require.NoError(t, err)
	assert.Equal(t, e.Sha, fresh.Sha, "old entity replaced, not reused")
}

func TestWriteFile_Create(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	e, err := d.WriteFile(context.Background(), "octo/widgets/NEW.md", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, KindFile, e.Kind)
	assert.Equal(t, 1, f.count("CreateFile"))
	assert.Zero(t, f.count("UpdateFile"))
}

func TestWriteFile_Folder(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	_, err := d.WriteFile(context.Background(), "octo/widgets/src", []byte("x"))
	require.ErrorIs(t, err, ErrNotFile)
	assert.Zero(t, f.mutationCount())
}

func TestWriteFile_MissingRepo(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	_, err := d.WriteFile(context.Background(), "octo/gadgets/a.txt", []byte("x"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.mutationCount())
}

func TestWriteFile_StaleShaConflicts(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	prime(t, d, "octo/widgets/README.md")

	// Someone else commits.
	r := f.repos["octo/widgets"]
	r.files["README.md"] = []byte("theirs\n")
	r.version++

	_, err := d.WriteFile(ctx, "octo/widgets/README.md", []byte("ours\n"))
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.count("UpdateFile"), "conflicts are not retried")
	assert.False(t, cached(d, "octo/widgets/README.md"))

	got, _ := f.content("octo", "widgets", "README.md")
	assert.Equal(t, "theirs\n", string(got))

	_, err = d.WriteFile(ctx, "octo/widgets/README.md", []byte("ours\n"))
	require.NoError(t, err, "a fresh resolve picks up the new sha")
}

func TestDeleteEntry_File(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	prime(t, d, "octo/widgets/src", "octo/widgets/src/main.go", "octo/widgets/README.md")

	require.NoError(t, d.DeleteEntry(ctx, "octo/widgets/src/main.go", false))

	assert.False(t, cached(d, "octo/widgets/src/main.go"))
	assert.False(t, cached(d, "octo/widgets/src"))
	assert.True(t, cached(d, "octo/widgets/README.md"))

	_, err := d.Resolve(ctx, "octo/widgets/src/main.go")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEntry_Missing(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	err := d.DeleteEntry(context.Background(), "octo/widgets/nope.txt", false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.mutationCount())
}

func TestDeleteEntry_RemoteNotFound(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	prime(t, d, "octo/widgets/README.md")
	delete(f.repos["octo/widgets"].files, "README.md")

	err := d.DeleteEntry(ctx, "octo/widgets/README.md", false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, cached(d, "octo/widgets/README.md"))
}

func TestDeleteEntry_Folder(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	prime(t, d, "octo/widgets", "octo/widgets/src", "octo/widgets/src/util", "octo/widgets/src/util/io.go")

	err := d.DeleteEntry(ctx, "octo/widgets/src", false)
	require.ErrorIs(t, err, ErrNotEmpty)
	assert.Zero(t, f.mutationCount())

	require.NoError(t, d.DeleteEntry(ctx, "octo/widgets/src", true))
	assert.Equal(t, 2, f.count("DeleteFile"))

	for _, p := range []string{"octo/widgets/src", "octo/widgets/src/util", "octo/widgets/src/util/io.go"} {
		assert.False(t, cached(d, p), p)
	}

	assert.False(t, cached(d, "octo/widgets"), "repository membership changed")

	_, err = d.Resolve(ctx, "octo/widgets/src")
	require.ErrorIs(t, err, ErrNotFound)

	_, ok := f.content("octo", "widgets", "README.md")
	assert.True(t, ok, "files outside the folder are untouched")
}

func TestDeleteEntry_FolderTruncated(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	prime(t, d, "octo/widgets/src")
	f.repos["octo/widgets"].truncate = true

	err := d.DeleteEntry(ctx, "octo/widgets/src", true)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, f.mutationCount())
}

func TestDeleteEntry_NotInsideRepo(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	err := d.DeleteEntry(context.Background(), "octo/widgets", true)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Zero(t, f.totalCalls())
}

func TestDeleteRepo(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	prime(t, d, "octo", "octo/widgets", "octo/widgets/src", "octo/widgets/README.md")

	require.NoError(t, d.DeleteRepo(ctx, "octo/widgets"))

	assert.True(t, cached(d, "octo"))
	assert.Equal(t, 1, d.Cache().Len())

	_, err := d.Resolve(ctx, "octo/widgets")
	require.ErrorIs(t, err, ErrNotFound)

	err = d.DeleteRepo(ctx, "octo/widgets")
	require.ErrorIs(t, err, ErrNotFound)

	for _, p := range []string{"octo", "octo/widgets/src"} {
		require.ErrorIs(t, d.DeleteRepo(ctx, p), ErrUnsupported, p)
	}
}

func TestCreateDirectory_OrgRepo(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	e, err := d.CreateDirectory(ctx, "octo/gadgets")
	require.NoError(t, err)
	assert.Equal(t, KindRepo, e.Kind)
	assert.Equal(t, 1, f.count("CreateRepo"))
	assert.True(t, cached(d, "octo/gadgets"))

	kids, err := d.Children(ctx, e)
	require.NoError(t, err)
	assert.Empty(t, kids)
}

func TestCreateDirectory_UserRepo(t *testing.T) {
	f := widgets()
	f.addUser("bob")
	d := newTestDrive(t, f)
	ctx := context.Background()

	e, err := d.CreateDirectory(ctx, "alice/notes")
	require.NoError(t, err)
	assert.Equal(t, "alice/notes", e.VirtualPath())

	_, err = d.CreateDirectory(ctx, "bob/notes")
	require.ErrorIs(t, err, ErrUnsupported, "cannot create in another user's account")

	_, err = d.CreateDirectory(ctx, "ghost/notes")
	require.ErrorIs(t, err, ErrUnsupported)

	assert.Equal(t, 1, f.mutationCount())
}

func TestCreateDirectory_RepoExists(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)

	_, err := d.CreateDirectory(context.Background(), "octo/widgets")
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Zero(t, f.mutationCount())
}

func TestCreateDirectory_Folder(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	e, err := d.CreateDirectory(ctx, "octo/widgets/docs/api")
	require.NoError(t, err)
	assert.Equal(t, KindFolder, e.Kind)
	assert.Equal(t, "docs/api", e.Path)

	marker, ok := f.content("octo", "widgets", "docs/api/"+DefaultPlaceholder)
	require.True(t, ok)
	assert.Empty(t, marker)

	got, err := d.Resolve(ctx, "octo/widgets/docs/api")
	require.NoError(t, err)
	assert.Equal(t, KindFolder, got.Kind)
	assert.NotEmpty(t, got.Sha)
}

func TestCreateDirectory_CustomPlaceholder(t *testing.T) {
	f := widgets()
	d := New(f, Options{Placeholder: ".keep", Logger: testLogger()})

	_, err := d.CreateDirectory(context.Background(), "octo/widgets/empty")
	require.NoError(t, err)

	_, ok := f.content("octo", "widgets", "empty/.keep")
	assert.True(t, ok)
	assert.Equal(t, ".keep", d.Placeholder())
}

func TestCreateDirectory_Failures(t *testing.T) {
	f := widgets()
	d := newTestDrive(t, f)
	ctx := context.Background()

	_, err := d.CreateDirectory(ctx, "octo/widgets/src")
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = d.CreateDirectory(ctx, "octo/gadgets/docs")
	require.ErrorIs(t, err, ErrUnsupported)

	for _, p := range []string{"", "octo"} {
		_, err = d.CreateDirectory(ctx, p)
		require.ErrorIs(t, err, ErrUnsupported, p)
	}

	assert.Zero(t, f.mutationCount())
}

func TestCreateDirectory_InEmptyRepo(t *testing.T) {
	f := widgets()
	f.addRepo("octo", "blank", nil)
	d := newTestDrive(t, f)

	_, err := d.CreateDirectory(context.Background(), "octo/blank/docs")
	require.NoError(t, err)

	_, ok := f.content("octo", "blank", "docs/.gitkeep")
	assert.True(t, ok)
}

func TestCommitMessage(t *testing.T) {
	d := New(widgets(), Options{CommitPrefix: "bot", Logger: testLogger()})
	assert.Equal(t, "bot: create octo/widgets/a.txt", d.commitMessage("create", "octo/widgets/a.txt"))
	assert.NotEmpty(t, d.SessionID())
}
