package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gible/internal/logging"
	"gible/internal/repo"
	"gible/shared/types"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *httptest.Server
	first  string
	second string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := memfs.New()
	r, err := repo.InitFS(fs, repo.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("hello\n"), 0644))
	_, err = r.Add("a.txt")
	require.NoError(t, err)
	c1, err := r.Commit("first")
	require.NoError(t, err)

	require.NoError(t, fs.MkdirAll("docs", 0755))
	require.NoError(t, util.WriteFile(fs, "docs/guide.md", []byte("# guide\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("hello\nagain\n"), 0644))
	_, err = r.Add("docs")
	require.NoError(t, err)
	c2, err := r.Commit("second")
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewRepoHandler(r, logging.Nop()).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &fixture{server: server, first: c1.CommitID, second: c2.CommitID}
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestStatusAndBranches(t *testing.T) {
	f := newFixture(t)

	var st shared.Status
	assert.Equal(t, http.StatusOK, f.get(t, "/api/status", &st))
	assert.Equal(t, "master", st.Branch)
	assert.Equal(t, f.second, st.Head)
	assert.True(t, st.Clean())

	var branches []shared.BranchInfo
	assert.Equal(t, http.StatusOK, f.get(t, "/api/branches", &branches))
	assert.Equal(t, []shared.BranchInfo{{Name: "master", Tip: f.second, Current: true}}, branches)
}

func TestCommits(t *testing.T) {
	f := newFixture(t)

	var log shared.Log
	assert.Equal(t, http.StatusOK, f.get(t, "/api/commits", &log))
	require.Len(t, log.Commits, 2)
	assert.Equal(t, "second", log.Commits[0].Message)

	assert.Equal(t, http.StatusOK, f.get(t, "/api/commits?limit=1", &log))
	assert.Len(t, log.Commits, 1)

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/commits?limit=x", &body))
	assert.Equal(t, "VALIDATION", body.Type)
}

func TestCommitDetail(t *testing.T) {
	f := newFixture(t)

	var detail shared.CommitDetail
	assert.Equal(t, http.StatusOK, f.get(t, "/api/commits/"+f.second[:8], &detail))
	assert.Equal(t, f.second, detail.ID)
	assert.Equal(t, []string{f.first}, detail.Parents)
	require.Len(t, detail.Files, 2)
	assert.Equal(t, "a.txt", detail.Files[0].Path)
	assert.Equal(t, "diff", detail.Files[0].Entry)
	assert.Equal(t, 1, detail.Files[0].Additions)
	assert.Equal(t, "docs/guide.md", detail.Files[1].Path)
	assert.Equal(t, "base", detail.Files[1].Entry)

	var body errorBody
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/commits/ffffffff", &body))
	assert.Equal(t, "NOT_FOUND", body.Type)
}

func TestFile(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/files/" + f.first + "/a.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(body))

	var detail map[string]any
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/files/"+f.first+"/docs/guide.md", &detail))
	assert.Equal(t, "PATH_NEVER_TRACKED", detail["type"])

	resp2, err := http.Get(f.server.URL + "/api/files/" + f.second + "/docs/guide.md")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
