package workspace

import (
	"os"
	"path/filepath"
	"testing"

	gerrors "gible/internal/errors"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWorkspace(t *testing.T, files map[string]string) *LocalWorkspace {
	t.Helper()
	fs := memfs.New()
	for name, data := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(data), 0644))
	}
	return New(fs, zap.NewNop())
}

func TestFilesSkipsRepoDir(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.txt":              "a",
		"src/main.go":        "package main",
		"src/deep/x.bin":     "x",
		".gible/config.json": "{}",
		".hidden":            "h",
	})

	files, err := w.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden", "a.txt", "src/deep/x.bin", "src/main.go"}, files)
}

func TestExpand(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.txt":       "a",
		"src/one.txt": "1",
		"src/two.txt": "2",
	})

	got, err := w.Expand("src")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/one.txt", "src/two.txt"}, got)

	got, err = w.Expand("./a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, got)

	got, err = w.Expand(".gible/index.json")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = w.Expand("missing.txt")
	assert.True(t, gerrors.HasType(err, gerrors.ErrorTypeNotFound))

	_, err = w.Expand("../outside")
	assert.True(t, gerrors.HasType(err, gerrors.ErrorTypeValidation))
}

func TestReadWriteRemove(t *testing.T) {
	w := newWorkspace(t, map[string]string{"keep/other.txt": "o"})

	_, ok, err := w.Read("nested/dir/file.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.Write("nested/dir/file.txt", []byte("data")))
	data, ok, err := w.Read("nested/dir/file.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data", string(data))

	require.NoError(t, w.Write("empty", nil))
	data, ok, err = w.Read("empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, data)

	require.NoError(t, w.Remove("nested/dir/file.txt"))
	_, err = w.Filesystem().Stat("nested")
	assert.ErrorIs(t, err, os.ErrNotExist, "empty parents are pruned")

	require.NoError(t, w.Remove("keep/gone.txt"), "missing file is fine")
	_, err = w.Filesystem().Stat("keep")
	assert.NoError(t, err)
}

func TestFilesIn(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"docs/a.md":     "a",
		"docs/b.md":     "b",
		"docs/sub/c.md": "c",
	})

	got, err := w.FilesIn("docs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs/a.md", "docs/b.md"}, got)

	got, err = w.FilesIn("nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, RepoDir), 0755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	_, err = FindRoot(t.TempDir())
	assert.True(t, gerrors.HasType(err, gerrors.ErrorTypeNotARepository))
}

func TestDestroyRepo(t *testing.T) {
	w := newWorkspace(t, map[string]string{".gible/objects/x": "x", "a.txt": "a"})

	ok, err := w.HasRepo()
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, w.DestroyRepo())
	ok, err = w.HasRepo()
	require.NoError(t, err)
	assert.False(t, ok)

	files, err := w.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, files)
}
