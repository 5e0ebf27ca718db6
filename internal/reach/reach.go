// Package reach decides which modules belong to API-only pages.
//
// The authoritative answer is a single reachability set computed over the
// import graph from the API entry documents. The other strategies reproduce
// earlier heuristics (substring match, one-hop importer check, upward importer
// walk, lifecycle accumulation) so plans built with them can be compared.
package reach

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/chunkplan/internal/graph"
)

// ErrUnknownStrategy is returned for a strategy name that is not recognised.
var ErrUnknownStrategy = errors.New("reach: unknown strategy")

// Strategy selects how API membership is determined.
type Strategy string

const (
	Direct       Strategy = "direct"
	OneLevel     Strategy = "one-level"
	Recursive    Strategy = "recursive"
	Accumulated  Strategy = "accumulated"
	Reachability Strategy = "reachability"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{Direct, OneLevel, Recursive, Accumulated, Reachability}

// ParseStrategy converts a name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range Strategies {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// SharedPolicy decides membership for modules reachable from both API and UI
// entry documents.
type SharedPolicy string

const (
	// SharedAPI keeps shared modules in the API set.
	SharedAPI SharedPolicy = "api"
	// SharedUI removes modules reachable from any UI entry from the API set.
	SharedUI SharedPolicy = "ui"
)

// Options configures a Resolver.
type Options struct {
	Strategy Strategy
	Shared   SharedPolicy
	// APIEntries are the module identifiers of API-only entry documents. They
	// double as the path fragments matched by the substring strategies.
	APIEntries []string
	// UIEntries are the remaining entry documents; used by SharedUI.
	UIEntries []string
}

// Resolver answers isApiModule for one build run. The membership set is
// computed once in New and only grows afterwards (Repair).
type Resolver struct {
	g        *graph.ImportGraph
	opts     Options
	set      map[string]struct{}
	excluded map[string]struct{}
}

// New computes API membership over g.
func New(g *graph.ImportGraph, opts Options) (*Resolver, error) {
	if opts.Strategy == "" {
		opts.Strategy = Reachability
	}
	if opts.Shared == "" {
		opts.Shared = SharedAPI
	}
	if _, err := ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}

	r := &Resolver{g: g, opts: opts}

	if opts.Shared == SharedUI {
		r.excluded = g.Reachable(opts.UIEntries...)
	}

	switch opts.Strategy {
	case Reachability:
		r.set = g.Reachable(opts.APIEntries...)
	case Accumulated:
		r.set = r.accumulate()
	default:
		r.set = make(map[string]struct{})
		for _, id := range g.Modules() {
			if r.evaluate(id) {
				r.set[id] = struct{}{}
			}
		}
	}

	return r, nil
}

// Strategy returns the strategy in use.
func (r *Resolver) Strategy() Strategy {
	return r.opts.Strategy
}

// IsAPIModule reports whether id is reachable only from API pages, per the
// configured strategy and shared policy. Modules unknown to the graph fall back
// to the direct substring test.
func (r *Resolver) IsAPIModule(id string) bool {
	if _, ok := r.excluded[id]; ok {
		return false
	}
	if _, ok := r.set[id]; ok {
		return true
	}
	if !r.g.Has(id) {
		return r.direct(id)
	}
	return false
}

// Set returns the API module identifiers, sorted.
func (r *Resolver) Set() []string {
	out := make([]string, 0, len(r.set))
	for id := range r.set {
		if _, ok := r.excluded[id]; ok {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Repair adds every module whose group starts with prefix to the set and
// returns how many modules were added. It compensates for a parse-order walk
// that missed same-chunk siblings; it is only meaningful for Accumulated.
func (r *Resolver) Repair(groupOf func(id string) string, prefix string) int {
	added := 0
	for _, id := range r.g.Modules() {
		if _, ok := r.set[id]; ok {
			continue
		}
		if strings.HasPrefix(groupOf(id), prefix) {
			r.set[id] = struct{}{}
			added++
		}
	}
	return added
}

func (r *Resolver) evaluate(id string) bool {
	switch r.opts.Strategy {
	case Direct:
		return r.direct(id)
	case OneLevel:
		return r.oneLevel(id)
	case Recursive:
		return r.recursive(id, make(map[string]struct{}))
	}
	return false
}

// direct: the identifier itself contains an API entry fragment.
func (r *Resolver) direct(id string) bool {
	for _, frag := range r.opts.APIEntries {
		if strings.Contains(id, frag) {
			return true
		}
	}
	return false
}

// oneLevel: direct, or an immediate importer is an API entry point.
func (r *Resolver) oneLevel(id string) bool {
	if r.direct(id) {
		return true
	}
	for _, importer := range r.g.Importers(id) {
		if r.g.IsEntry(importer) && r.direct(importer) {
			return true
		}
	}
	return false
}

// recursive: direct, or any importer is recursively an API module. The visited
// set makes cyclic import chains terminate.
func (r *Resolver) recursive(id string, visited map[string]struct{}) bool {
	if r.direct(id) {
		return true
	}
	if _, ok := visited[id]; ok {
		return false
	}
	visited[id] = struct{}{}
	for _, importer := range r.g.Importers(id) {
		if r.recursive(importer, visited) {
			return true
		}
	}
	return false
}

// accumulate emulates build-lifecycle tracking: seed with the API entries, then
// visit modules in parse order and add any module with an importer already in
// the set.
func (r *Resolver) accumulate() map[string]struct{} {
	set := make(map[string]struct{})
	for _, id := range r.opts.APIEntries {
		if r.g.Has(id) {
			set[id] = struct{}{}
		}
	}
	for _, id := range r.g.Modules() {
		if _, ok := set[id]; ok {
			continue
		}
		for _, importer := range r.g.Importers(id) {
			if _, ok := set[importer]; ok {
				set[id] = struct{}{}
				break
			}
		}
	}
	return set
}
