package fsutil

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	fs := memfs.New()

	require.NoError(t, WriteFileAtomic(fs, "meta/state.json", []byte("v1")))
	require.NoError(t, WriteFileAtomic(fs, "meta/state.json", []byte("v2")))

	got, err := util.ReadFile(fs, "meta/state.json")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	entries, err := fs.ReadDir("meta")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}

func TestExists(t *testing.T) {
	fs := memfs.New()
	ok, err := Exists(fs, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, util.WriteFile(fs, "yes", nil, 0644))
	ok, err = Exists(fs, "yes")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPruneEmptyDirs(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("a/b/c", 0755))
	require.NoError(t, util.WriteFile(fs, "a/keep.txt", []byte("x"), 0644))

	require.NoError(t, PruneEmptyDirs(fs, "a/b/c"))

	ok, err := Exists(fs, "a/b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Exists(fs, "a")
	require.NoError(t, err)
	assert.True(t, ok, "non-empty parent stays")
}
