package validation

import (
	"net/http"
	"strconv"
	"strings"

	"gible/internal/errors"
)

// Limit reads the "limit" query parameter, falling back to def when it is
// absent. Zero means no limit.
func Limit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.ValidationError("limit must be a non-negative integer", map[string]string{"limit": raw})
	}
	return n, nil
}

// PathValue returns the named wildcard, rejecting empty values and
// segments that would leave the worktree.
func PathValue(r *http.Request, name string) (string, error) {
	v := r.PathValue(name)
	if v == "" {
		return "", errors.ValidationError(name+" is required", nil)
	}
	for _, part := range strings.Split(v, "/") {
		if part == ".." {
			return "", errors.ValidationError(name+" must not contain '..'", map[string]string{name: v})
		}
	}
	return v, nil
}
