package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gible/internal/api"
	gerrors "gible/internal/errors"
	"gible/internal/logging"
	"gible/internal/repo"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*Client, string) {
	t.Helper()
	fs := memfs.New()
	r, err := repo.InitFS(fs, repo.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	require.NoError(t, fs.MkdirAll("notes", 0755))
	require.NoError(t, util.WriteFile(fs, "notes/todo list.txt", []byte("milk\n"), 0644))
	_, err = r.Add("notes")
	require.NoError(t, err)
	res, err := r.Commit("notes")
	require.NoError(t, err)

	mux := http.NewServeMux()
	api.NewRepoHandler(r, logging.Nop()).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return New(server.URL + "/"), res.CommitID
}

func TestClientReads(t *testing.T) {
	c, id := newServer(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, st.Head)

	branches, err := c.Branches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.True(t, branches[0].Current)

	log, err := c.Log(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log.Commits, 1)
	assert.Equal(t, "notes", log.Commits[0].Message)

	detail, err := c.Commit(ctx, id[:12])
	require.NoError(t, err)
	require.Len(t, detail.Files, 1)
	assert.Equal(t, "notes/todo list.txt", detail.Files[0].Path)

	data, err := c.File(ctx, id, "notes/todo list.txt")
	require.NoError(t, err)
	assert.Equal(t, "milk\n", string(data))
}

func TestClientTypedErrors(t *testing.T) {
	c, id := newServer(t)
	ctx := context.Background()

	_, err := c.Commit(ctx, "0000000000")
	assert.True(t, gerrors.HasType(err, gerrors.ErrorTypeNotFound))
	assert.Equal(t, http.StatusNotFound, gerrors.StatusCode(err))

	_, err = c.File(ctx, id, "missing.txt")
	assert.True(t, gerrors.HasType(err, gerrors.ErrorTypePathNeverTracked))
}
