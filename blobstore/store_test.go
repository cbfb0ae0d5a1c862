package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vfs "github.com/hupe1980/sentvec/internal/fs"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "config", []byte("v1")))
		got, err := s.Get(ctx, "config")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, s.Put(ctx, "config", []byte("v2")))
		got, err = s.Get(ctx, "config")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("Nested", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "scoring/model", []byte{1, 2, 3}))
		ok, err := s.Exists(ctx, "scoring/model")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

		ok, err := s.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("List", func(t *testing.T) {
		names, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"config", "scoring/model"}, names)

		names, err = s.List(ctx, "scoring/")
		require.NoError(t, err)
		assert.Equal(t, []string{"scoring/model"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "scoring/model"))
		require.NoError(t, s.Delete(ctx, "scoring/model"))
		ok, err := s.Exists(ctx, "scoring/model")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InvalidName", func(t *testing.T) {
		assert.Error(t, s.Put(ctx, "../escape", []byte("x")))
		assert.Error(t, s.Put(ctx, "", []byte("x")))
	})
}

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "embeddings")
	s := NewLocalStore(dir)
	assert.Equal(t, dir, s.Root())

	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)

	testStore(t, s)

	data, err := os.ReadFile(filepath.Join(dir, "config"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestLocalStore_FailedPutKeepsBlob(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ffs := vfs.NewFaultyFS(nil)
	s := NewLocalStore(dir, WithFileSystem(ffs))
	require.NoError(t, s.Put(ctx, "embeddings", []byte("old")))

	ffs.AddRule("embeddings", vfs.Fault{FailOnSync: true})
	err := s.Put(ctx, "embeddings", []byte("new"))
	require.ErrorIs(t, err, vfs.ErrInjected)

	got, err := s.Get(ctx, "embeddings")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	ffs.ClearRules()
	require.NoError(t, s.Put(ctx, "embeddings", []byte("new")))
	got, err = s.Get(ctx, "embeddings")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testStore(t, s)
	assert.Equal(t, 1, s.Len())

	// Returned data must not alias the stored copy.
	ctx := context.Background()
	got, err := s.Get(ctx, "config")
	require.NoError(t, err)
	got[0] = 'x'
	again, err := s.Get(ctx, "config")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), again)
}

func TestThrottled(t *testing.T) {
	testStore(t, NewThrottled(NewMemoryStore(), ThrottleConfig{BytesPerSec: 1 << 20, MaxConcurrent: 2}))
	testStore(t, NewThrottled(NewMemoryStore(), ThrottleConfig{}))
}

func TestThrottled_LargeWrite(t *testing.T) {
	// Larger than the burst: admitted in steps instead of failing.
	s := NewThrottled(NewMemoryStore(), ThrottleConfig{BytesPerSec: 1 << 16})
	require.NoError(t, s.Put(context.Background(), "big", make([]byte, 1<<16+10)))
}

func TestThrottled_Cancelled(t *testing.T) {
	s := NewThrottled(NewMemoryStore(), ThrottleConfig{BytesPerSec: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Put(ctx, "slow", make([]byte, 64)))
}

func TestSub(t *testing.T) {
	ctx := context.Background()
	parent := NewMemoryStore()
	sub := Sub(parent, "scoring")

	require.NoError(t, sub.Put(ctx, "weights", []byte("w")))
	ok, err := parent.Exists(ctx, "scoring/weights")
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := sub.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"weights"}, names)

	got, err := sub.Get(ctx, "weights")
	require.NoError(t, err)
	assert.Equal(t, []byte("w"), got)

	require.NoError(t, sub.Delete(ctx, "weights"))
	assert.Equal(t, 0, parent.Len())
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"config", "config", false},
		{"scoring/model", "scoring/model", false},
		{"scoring//model", "scoring/model", false},
		{`scoring\model`, "scoring/model", false},
		{"", "", true},
		{".", "", true},
		{"..", "", true},
		{"../x", "", true},
		{"/abs", "", true},
	}
	for _, tt := range tests {
		got, err := CleanName(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
