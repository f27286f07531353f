package graph

import (
	"fmt"
	"sort"

	"github.com/schemamancer/schemamancer/store"
)

// PathNotFoundError is the non-fatal "disconnected" result. Callers
// usually fall back to computing a fresh diff between the two models.
type PathNotFoundError struct {
	From string
	To   string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("no transition path from %s to %s", e.From, e.To)
}

// FindPath returns the shortest sequence of transitions connecting two
// snapshots, measured in hops, not in total step count. When several
// shortest paths exist, the earliest-created transitions win because
// edges are visited in creation order.
func FindPath(g *Graph, from, to string) ([]*store.Transition, error) {
	return bfs(g, from, to, g.Outgoing, func(t *store.Transition) string { return t.ToHash })
}

// FindReversePath walks transition edges backwards, for planning a
// rollback from one snapshot to an ancestor. The returned transitions
// are in traversal order: the first entry is the edge arriving at from.
func FindReversePath(g *Graph, from, to string) ([]*store.Transition, error) {
	return bfs(g, from, to, g.Incoming, func(t *store.Transition) string { return t.FromHash })
}

func bfs(g *Graph, from, to string, edges func(string) []*store.Transition, next func(*store.Transition) string) ([]*store.Transition, error) {
	if !g.Has(from) || !g.Has(to) {
		return nil, &PathNotFoundError{From: from, To: to}
	}
	if from == to {
		return nil, nil
	}

	type hop struct {
		node string
		via  *store.Transition
		prev *hop
	}
	visited := map[string]bool{from: true}
	queue := []*hop{{node: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range edges(cur.node) {
			n := next(t)
			if visited[n] {
				continue
			}
			h := &hop{node: n, via: t, prev: cur}
			if n == to {
				var path []*store.Transition
				for walk := h; walk.via != nil; walk = walk.prev {
					path = append(path, walk.via)
				}
				// reconstructed tail-first
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, nil
			}
			visited[n] = true
			queue = append(queue, h)
		}
	}

	return nil, &PathNotFoundError{From: from, To: to}
}

// FindAllPaths enumerates every simple path between two snapshots up to
// maxDepth hops, shortest first.
func FindAllPaths(g *Graph, from, to string, maxDepth int) ([][]*store.Transition, error) {
	if !g.Has(from) || !g.Has(to) {
		return nil, &PathNotFoundError{From: from, To: to}
	}
	if maxDepth <= 0 {
		maxDepth = len(g.nodes)
	}

	var results [][]*store.Transition
	onPath := map[string]bool{from: true}
	var path []*store.Transition

	var walk func(node string)
	walk = func(node string) {
		if node == to {
			found := make([]*store.Transition, len(path))
			copy(found, path)
			results = append(results, found)
			return
		}
		if len(path) >= maxDepth {
			return
		}
		for _, t := range g.Outgoing(node) {
			if onPath[t.ToHash] {
				continue
			}
			onPath[t.ToHash] = true
			path = append(path, t)
			walk(t.ToHash)
			path = path[:len(path)-1]
			delete(onPath, t.ToHash)
		}
	}
	walk(from)

	if len(results) == 0 {
		return nil, &PathNotFoundError{From: from, To: to}
	}
	sort.SliceStable(results, func(i, j int) bool { return len(results[i]) < len(results[j]) })
	return results, nil
}

// Reachable returns every snapshot reachable from the given one by
// following transitions forward, sorted; the start node is excluded.
func Reachable(g *Graph, from string) []string {
	return traverse(g, from, g.Outgoing, func(t *store.Transition) string { return t.ToHash })
}

// Predecessors returns every snapshot from which the given one can be
// reached, sorted; the node itself is excluded.
func Predecessors(g *Graph, of string) []string {
	return traverse(g, of, g.Incoming, func(t *store.Transition) string { return t.FromHash })
}

func traverse(g *Graph, start string, edges func(string) []*store.Transition, next func(*store.Transition) string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range edges(cur) {
			n := next(t)
			if visited[n] {
				continue
			}
			visited[n] = true
			out = append(out, n)
			queue = append(queue, n)
		}
	}
	sort.Strings(out)
	return out
}
