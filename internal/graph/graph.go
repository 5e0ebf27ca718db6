// Package graph holds the module import graph and computes reachability and
// PageRank over it.
package graph

import (
	"errors"
	"math"
	"sort"

	dgraph "github.com/dominikbraun/graph"
)

// Edge is a single import: From imports To.
type Edge struct {
	From string
	To   string
}

// ImportGraph is a directed graph keyed by module identifier with an edge from
// every importer to each module it imports. It is not safe for concurrent
// mutation.
type ImportGraph struct {
	g       dgraph.Graph[string, string]
	entries map[string]struct{}
	order   []string

	adjacency    map[string]map[string]dgraph.Edge[string]
	predecessors map[string]map[string]dgraph.Edge[string]
}

// New returns an empty import graph.
func New() *ImportGraph {
	return &ImportGraph{
		g:       dgraph.New(dgraph.StringHash, dgraph.Directed()),
		entries: make(map[string]struct{}),
	}
}

// AddModule adds a module vertex. Adding an existing module is a no-op.
func (ig *ImportGraph) AddModule(id string) {
	err := ig.g.AddVertex(id)
	if errors.Is(err, dgraph.ErrVertexAlreadyExists) {
		return
	}
	ig.order = append(ig.order, id)
	ig.invalidate()
}

// AddEntry adds a module and flags it as an entry point.
func (ig *ImportGraph) AddEntry(id string) {
	ig.AddModule(id)
	ig.entries[id] = struct{}{}
}

// AddImport records that importer imports imported, adding both modules if
// needed. Duplicate edges are ignored.
func (ig *ImportGraph) AddImport(importer, imported string) error {
	ig.AddModule(importer)
	ig.AddModule(imported)
	err := ig.g.AddEdge(importer, imported)
	if err != nil && !errors.Is(err, dgraph.ErrEdgeAlreadyExists) {
		return err
	}
	ig.invalidate()
	return nil
}

func (ig *ImportGraph) invalidate() {
	ig.adjacency = nil
	ig.predecessors = nil
}

// Has reports whether the module is in the graph.
func (ig *ImportGraph) Has(id string) bool {
	_, err := ig.g.Vertex(id)
	return err == nil
}

// IsEntry reports whether the module is flagged as an entry point.
func (ig *ImportGraph) IsEntry(id string) bool {
	_, ok := ig.entries[id]
	return ok
}

// Entries returns the entry modules sorted by identifier.
func (ig *ImportGraph) Entries() []string {
	return sortedKeys(ig.entries)
}

// Modules returns every module in the order it was first added. For a graph
// built by a source walk this is parse order.
func (ig *ImportGraph) Modules() []string {
	out := make([]string, len(ig.order))
	copy(out, ig.order)
	return out
}

// Len returns the number of modules.
func (ig *ImportGraph) Len() int {
	return len(ig.order)
}

// Imports returns the modules id imports, sorted.
func (ig *ImportGraph) Imports(id string) []string {
	return sortedEdgeKeys(ig.adjacencyMap()[id])
}

// Importers returns the modules that import id, sorted.
func (ig *ImportGraph) Importers(id string) []string {
	return sortedEdgeKeys(ig.predecessorMap()[id])
}

// Edges returns every import edge sorted by importer then imported module.
func (ig *ImportGraph) Edges() []Edge {
	var edges []Edge
	for from, targets := range ig.adjacencyMap() {
		for to := range targets {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Reachable returns every module reachable from the given start modules,
// including the starts themselves. Starts missing from the graph are ignored.
// Traversal keeps a visited set, so import cycles terminate.
func (ig *ImportGraph) Reachable(starts ...string) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, start := range starts {
		if _, done := seen[start]; done || !ig.Has(start) {
			continue
		}
		_ = dgraph.BFS(ig.g, start, func(id string) bool {
			seen[id] = struct{}{}
			return false
		})
	}
	return seen
}

func (ig *ImportGraph) adjacencyMap() map[string]map[string]dgraph.Edge[string] {
	if ig.adjacency == nil {
		m, err := ig.g.AdjacencyMap()
		if err != nil {
			return nil
		}
		ig.adjacency = m
	}
	return ig.adjacency
}

func (ig *ImportGraph) predecessorMap() map[string]map[string]dgraph.Edge[string] {
	if ig.predecessors == nil {
		m, err := ig.g.PredecessorMap()
		if err != nil {
			return nil
		}
		ig.predecessors = m
	}
	return ig.predecessors
}

// Rank applies PageRank to the import graph. A module imported by many modules
// (directly or through other central modules) ranks higher. Ranks sum to ~1.
func Rank(ig *ImportGraph) map[string]float64 {
	if ig.Len() == 0 {
		return nil
	}

	nodes := make(map[string]struct{}, ig.Len())
	for _, id := range ig.order {
		nodes[id] = struct{}{}
	}

	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	for _, e := range ig.Edges() {
		outEdges[e.From] = append(outEdges[e.From], e.To)
		outDegree[e.From]++
	}

	if len(outEdges) == 0 {
		uniform := 1.0 / float64(len(nodes))
		ranks := make(map[string]float64, len(nodes))
		for id := range nodes {
			ranks[id] = uniform
		}
		return ranks
	}

	return pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedEdgeKeys(m map[string]dgraph.Edge[string]) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
