package blobcache

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newTestStore opens a store in a temp dir with a controllable clock.
func newTestStore(t *testing.T, maxBytes int64) (*Store, *time.Time) {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache", "blobs.db"), maxBytes, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }

	return s, &now
}

func TestStore_PutGet(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "abc", []byte("hello")))

	got, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))

	require.NoError(t, s.Put(ctx, "abc", []byte("hello")), "storing twice is harmless")

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Blobs: 1, Bytes: 5}, st)
}

func TestStore_EmptyBlob(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", nil))

	got, ok, err := s.Get(ctx, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestStore_PruneLeastRecentlyUsed(t *testing.T) {
	s, now := newTestStore(t, 0)
	ctx := context.Background()

	for _, sha := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, sha, []byte(strings.Repeat(sha, 10))))
		*now = now.Add(time.Second)
	}

	// Reading "a" makes "b" the oldest.
	_, _, err := s.Get(ctx, "a")
	require.NoError(t, err)

	n, err := s.Prune(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := s.Get(ctx, "b")
	assert.False(t, ok)

	for _, sha := range []string{"a", "c"} {
		_, ok, _ := s.Get(ctx, sha)
		assert.True(t, ok, sha)
	}

	n, err = s.Prune(ctx, 20)
	require.NoError(t, err)
	assert.Zero(t, n, "already under the limit")
}

func TestStore_PutEnforcesLimit(t *testing.T) {
	s, now := newTestStore(t, 25)
	ctx := context.Background()

	for _, sha := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, sha, []byte(strings.Repeat(sha, 10))))
		*now = now.Add(time.Second)
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Blobs)
	assert.LessOrEqual(t, st.Bytes, int64(25))

	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok, "oldest entry evicted")
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	ctx := context.Background()

	s, err := Open(ctx, path, 0, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "abc", []byte("kept")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, 0, testLogger())
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kept", string(got))
}
