package lock

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcquireRelease(t *testing.T) {
	filesystems := map[string]billy.Filesystem{
		"memfs": memfs.New(),
		"osfs":  osfs.New(t.TempDir()),
	}
	for name, fs := range filesystems {
		t.Run(name, func(t *testing.T) {
			l, err := Acquire(fs, zap.NewNop())
			require.NoError(t, err)

			_, err = fs.Stat(FileName)
			assert.NoError(t, err)

			require.NoError(t, l.Release())
			assert.NoError(t, l.Release(), "second release is a no-op")

			again, err := Acquire(fs, zap.NewNop())
			require.NoError(t, err, "lock can be taken again after release")
			require.NoError(t, again.Release())
		})
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
