// Package ancestry answers reachability questions over every parent edge of
// the commit DAG.
package ancestry

import (
	"go.uber.org/zap"
)

// Parents resolves the parent ids of a commit. *graph.Graph satisfies it.
type Parents interface {
	Parents(id string) ([]string, error)
}

type Resolver struct {
	graph  Parents
	logger *zap.Logger
}

func New(graph Parents, logger *zap.Logger) *Resolver {
	return &Resolver{graph: graph, logger: logger}
}

// parents treats a commit that cannot be loaded as having no parents.
func (r *Resolver) parents(id string) []string {
	ps, err := r.graph.Parents(id)
	if err != nil {
		r.logger.Debug("unreadable commit treated as a dead end", zap.String("commit", id), zap.Error(err))
		return nil
	}
	return ps
}

// AllAncestors returns every commit reachable from id through any parent,
// excluding id itself.
func (r *Resolver) AllAncestors(id string) map[string]struct{} {
	seen := make(map[string]struct{})
	if id == "" {
		return seen
	}
	stack := append([]string(nil), r.parents(id)...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == "" {
			continue
		}
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, r.parents(cur)...)
	}
	return seen
}

// IsAncestor reports whether a is b or reachable from b.
func (r *Resolver) IsAncestor(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	_, ok := r.AllAncestors(b)[a]
	return ok
}

// CommonAncestor returns the first commit reached by a breadth-first walk
// from b that is a or one of its ancestors, or "" when the histories are
// disjoint. With criss-cross merges there may be several equally good
// bases; the first one found wins.
func (r *Resolver) CommonAncestor(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	ancestorsOfA := r.AllAncestors(a)
	ancestorsOfA[a] = struct{}{}

	queue := []string{b}
	visited := map[string]struct{}{b: {}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := ancestorsOfA[cur]; ok {
			return cur
		}
		for _, p := range r.parents(cur) {
			if p == "" {
				continue
			}
			if _, ok := visited[p]; ok {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	return ""
}
