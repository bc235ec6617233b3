// Package api serves a read-only JSON view of a repository.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	gerrors "gible/internal/errors"
	"gible/internal/logging"
	"gible/internal/validation"
	"gible/shared/types"

	"go.uber.org/zap"
)

const defaultLogLimit = 50

// Repo is the part of a repository session the API reads.
type Repo interface {
	Status() (*shared.Status, error)
	ListBranches() ([]shared.BranchInfo, error)
	ListCommits(limit int) (*shared.Log, error)
	Show(ref string) (*shared.CommitDetail, error)
	ReadFile(ref, path string) ([]byte, error)
}

type RepoHandler struct {
	// sessions reload state per call and are not safe for concurrent use
	mu     sync.Mutex
	repo   Repo
	logger *logging.Logger
}

func NewRepoHandler(repo Repo, logger *logging.Logger) *RepoHandler {
	return &RepoHandler{repo: repo, logger: logger}
}

// Register mounts the handlers on mux.
func (h *RepoHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/branches", h.Branches)
	mux.HandleFunc("GET /api/commits", h.Commits)
	mux.HandleFunc("GET /api/commits/{id}", h.Commit)
	mux.HandleFunc("GET /api/files/{commit}/{path...}", h.File)
}

type errorBody struct {
	Error   string `json:"error"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *RepoHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := gerrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithRequestID(r.Context()).Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{
		Error:   http.StatusText(status),
		Type:    string(gerrors.TypeOf(err)),
		Message: err.Error(),
	})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *RepoHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.repo.Status()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *RepoHandler) Branches(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	branches, err := h.repo.ListBranches()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if branches == nil {
		branches = []shared.BranchInfo{}
	}
	writeJSON(w, http.StatusOK, branches)
}

func (h *RepoHandler) Commits(w http.ResponseWriter, r *http.Request) {
	limit, err := validation.Limit(r, defaultLogLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	log, err := h.repo.ListCommits(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *RepoHandler) Commit(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, err := validation.PathValue(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	detail, err := h.repo.Show(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// File returns the raw bytes of a path at a commit.
func (h *RepoHandler) File(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	commit, err := validation.PathValue(r, "commit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	path, err := validation.PathValue(r, "path")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.repo.ReadFile(commit, path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
