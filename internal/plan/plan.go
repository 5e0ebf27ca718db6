// Package plan runs one planning pass: load the import graph, decide API
// membership, classify every module and compute output names.
package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/phobologic/chunkplan/internal/classify"
	"github.com/phobologic/chunkplan/internal/config"
	"github.com/phobologic/chunkplan/internal/discover"
	"github.com/phobologic/chunkplan/internal/graph"
	"github.com/phobologic/chunkplan/internal/model"
	"github.com/phobologic/chunkplan/internal/naming"
	"github.com/phobologic/chunkplan/internal/reach"
	"github.com/phobologic/chunkplan/internal/source"
)

// Planner builds plans for one project root.
type Planner struct {
	cfg      *config.Config
	root     string
	logger   *zap.Logger
	cache    *source.Cache
	progress source.Progress
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// WithCache reuses parsed files across runs.
func WithCache(c *source.Cache) Option {
	return func(p *Planner) { p.cache = c }
}

// WithProgress reports parse progress.
func WithProgress(pr source.Progress) Option {
	return func(p *Planner) { p.progress = pr }
}

// New returns a Planner for cfg rooted at root.
func New(cfg *config.Config, root string, opts ...Option) *Planner {
	p := &Planner{cfg: cfg, root: root, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the outcome of one planning pass.
type Result struct {
	Plan  *model.Plan
	Graph *graph.ImportGraph
	Files []discover.FileEntry
	// APIModules is the sorted API-module set.
	APIModules []string
}

// Build runs one planning pass.
func (p *Planner) Build(ctx context.Context) (*Result, error) {
	cfg := p.cfg

	var apiNames, apiIDs, uiIDs []string
	for _, e := range cfg.APIEntries() {
		apiNames = append(apiNames, e.Name)
		apiIDs = append(apiIDs, e.ID())
	}
	for _, e := range cfg.UIEntries() {
		uiIDs = append(uiIDs, e.ID())
	}

	loader, err := source.New(cfg.Source.Kind, source.Options{
		Root:        p.root,
		Entries:     cfg.Entries,
		APIEntries:  apiNames,
		Stub:        cfg.API.Stub,
		Ignore:      cfg.Source.Ignore,
		MaxFileSize: cfg.Source.MaxFileSize,
		Workers:     cfg.Source.Workers,
		Cache:       p.cache,
		Progress:    p.progress,
		Logger:      p.logger,
	})
	if err != nil {
		return nil, err
	}
	loaded, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading import graph: %w", err)
	}
	g := loaded.Graph

	membership, err := reach.New(g, reach.Options{
		Strategy:   reach.Strategy(cfg.Membership.Strategy),
		Shared:     reach.SharedPolicy(cfg.Membership.Shared),
		APIEntries: apiIDs,
		UIEntries:  uiIDs,
	})
	if err != nil {
		return nil, err
	}

	classifier := cfg.Classifier(classify.WithLogger(p.logger))
	groups := p.classifyAll(g, membership, classifier)

	if membership.Strategy() == reach.Accumulated {
		added := membership.Repair(func(id string) string { return groups[id] }, cfg.API.GroupPrefix)
		if added > 0 {
			p.logger.Debug("repaired api set", zap.Int("added", added))
			groups = p.classifyAll(g, membership, classifier)
		}
	}

	namer, err := cfg.Namer()
	if err != nil {
		return nil, err
	}

	ranks := graph.Rank(g)
	plan := &model.Plan{
		Project:  filepath.Base(p.root),
		Base:     cfg.Base,
		Strategy: string(membership.Strategy()),
		Source:   cfg.Source.Kind,
		Entries:  p.entryOutputs(namer),
	}

	members := make(map[string][]string)
	for _, id := range g.Modules() {
		a := model.Assignment{
			ID:    id,
			Group: groups[id],
			API:   membership.IsAPIModule(id),
			Rank:  ranks[id],
		}
		plan.Modules = append(plan.Modules, a)
		if a.Group != model.NoGroup {
			members[a.Group] = append(members[a.Group], id)
		}
	}
	sort.SliceStable(plan.Modules, func(i, j int) bool {
		if plan.Modules[i].Rank != plan.Modules[j].Rank {
			return plan.Modules[i].Rank > plan.Modules[j].Rank
		}
		return plan.Modules[i].ID < plan.Modules[j].ID
	})
	plan.Groups = groupSummaries(members, namer, cfg.API.GroupPrefix)
	for _, e := range g.Edges() {
		plan.Imports = append(plan.Imports, model.Import{From: e.From, To: e.To})
	}

	return &Result{
		Plan:       plan,
		Graph:      g,
		Files:      loaded.Files,
		APIModules: membership.Set(),
	}, nil
}

func (p *Planner) classifyAll(g *graph.ImportGraph, m *reach.Resolver, c *classify.Classifier) map[string]string {
	groups := make(map[string]string, g.Len())
	for _, id := range g.Modules() {
		groups[id] = c.Classify(id, m.IsAPIModule(id))
	}
	return groups
}

// Entries computes the output names of every configured entry without
// loading the import graph.
func (p *Planner) Entries() ([]model.EntryOutput, error) {
	namer, err := p.cfg.Namer()
	if err != nil {
		return nil, err
	}
	return p.entryOutputs(namer), nil
}

// entryOutputs names each entry's chunk from its document contents. API
// documents are renamed through the asset template; others keep their path.
func (p *Planner) entryOutputs(n *naming.Namer) []model.EntryOutput {
	out := make([]model.EntryOutput, 0, len(p.cfg.Entries))
	api := make(map[string]struct{})
	for _, e := range p.cfg.APIEntries() {
		api[e.Name] = struct{}{}
	}
	for _, e := range p.cfg.Entries {
		content, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(e.Path)))
		if err != nil {
			p.logger.Debug("entry document unreadable, hashing its path",
				zap.String("entry", e.Name), zap.Error(err))
			content = []byte(e.Path)
		}
		_, isAPI := api[e.Name]
		doc := e.Path
		if n.IsAPIAsset(e.Path) {
			doc = n.Asset(e.Path, content)
		}
		out = append(out, model.EntryOutput{
			Name:     e.Name,
			Source:   e.Path,
			API:      isAPI,
			Output:   n.Entry(e.Name, e.ID(), content),
			Document: doc,
		})
	}
	return out
}

func groupSummaries(members map[string][]string, n *naming.Namer, apiPrefix string) []model.GroupSummary {
	out := make([]model.GroupSummary, 0, len(members))
	for group, ids := range members {
		sort.Strings(ids)
		out = append(out, model.GroupSummary{
			Group:   group,
			Modules: len(ids),
			API:     strings.HasPrefix(group, apiPrefix),
			File:    n.Chunk(group, []byte(strings.Join(ids, "\n"))),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}
