package graph

import (
	"sort"

	"github.com/schemamancer/schemamancer/store"
)

// Graph is the adjacency view over snapshots and transitions. Outgoing
// edges answer forward migration queries, incoming edges answer
// rollback and ancestry queries.
type Graph struct {
	nodes    map[string]bool
	outgoing map[string][]*store.Transition
	incoming map[string][]*store.Transition
}

// Build constructs the adjacency maps. Edge lists are sorted by
// transition creation time (then by target hash) so traversal order,
// and therefore tie-breaking between equal-length paths, is stable.
func Build(snapshotHashes []string, transitions []*store.Transition) *Graph {
	g := &Graph{
		nodes:    make(map[string]bool, len(snapshotHashes)),
		outgoing: make(map[string][]*store.Transition),
		incoming: make(map[string][]*store.Transition),
	}
	for _, hash := range snapshotHashes {
		g.nodes[hash] = true
	}
	for _, t := range transitions {
		g.nodes[t.FromHash] = true
		g.nodes[t.ToHash] = true
		g.outgoing[t.FromHash] = append(g.outgoing[t.FromHash], t)
		g.incoming[t.ToHash] = append(g.incoming[t.ToHash], t)
	}
	for _, edges := range g.outgoing {
		sortEdges(edges, func(t *store.Transition) string { return t.ToHash })
	}
	for _, edges := range g.incoming {
		sortEdges(edges, func(t *store.Transition) string { return t.FromHash })
	}
	return g
}

func sortEdges(edges []*store.Transition, key func(*store.Transition) string) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if !a.Metadata.CreatedAt.Equal(b.Metadata.CreatedAt) {
			return a.Metadata.CreatedAt.Before(b.Metadata.CreatedAt)
		}
		return key(a) < key(b)
	})
}

// Has reports whether a snapshot hash is a node in the graph.
func (g *Graph) Has(hash string) bool {
	return g.nodes[hash]
}

// Nodes returns all snapshot hashes in the graph, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for hash := range g.nodes {
		out = append(out, hash)
	}
	sort.Strings(out)
	return out
}

// Outgoing returns the outgoing edges of a node in stable order.
func (g *Graph) Outgoing(hash string) []*store.Transition {
	return g.outgoing[hash]
}

// Incoming returns the incoming edges of a node in stable order.
func (g *Graph) Incoming(hash string) []*store.Transition {
	return g.incoming[hash]
}
