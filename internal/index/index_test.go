package index

import (
	"strings"
	"testing"

	"gible/internal/content"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var oid = strings.Repeat("a1", 32)

func TestMissingIndexIsEmpty(t *testing.T) {
	idx, err := Load(memfs.New(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Warnings())
}

func TestSaveAndReload(t *testing.T) {
	fs := memfs.New()
	idx, err := Load(fs, zap.NewNop())
	require.NoError(t, err)

	idx.Add("b.txt", oid, content.ModeText)
	idx.Add("a.bin", oid, content.ModeBinary)
	require.NoError(t, idx.Save())

	reloaded, err := Load(fs, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.bin", "b.txt"}, reloaded.Paths())

	e, ok := reloaded.Get("a.bin")
	require.True(t, ok)
	assert.Equal(t, Entry{Hash: oid, Mode: content.ModeBinary}, e)

	assert.True(t, reloaded.Remove("a.bin"))
	assert.False(t, reloaded.Remove("a.bin"))
	assert.Equal(t, 1, reloaded.Len())

	reloaded.Clear()
	assert.Equal(t, 0, reloaded.Len())
}

func TestCorruptIndexResets(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, FileName, []byte("{not json"), 0644))

	idx, err := Load(fs, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	require.Len(t, idx.Warnings(), 1)
}

func TestMalformedEntriesDropped(t *testing.T) {
	fs := memfs.New()
	data := `{
  "good.txt": {"hash": "` + oid + `", "mode": "text"},
  "short.txt": {"hash": "abc", "mode": "text"},
  "weird.txt": {"hash": "` + oid + `", "mode": "symlink"}
}`
	require.NoError(t, util.WriteFile(fs, FileName, []byte(data), 0644))

	idx, err := Load(fs, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"good.txt"}, idx.Paths())
	assert.Len(t, idx.Warnings(), 2)
}
