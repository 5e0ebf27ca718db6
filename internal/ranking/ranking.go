// Package ranking narrows a plan to the modules worth showing.
package ranking

import (
	"strings"

	"github.com/phobologic/chunkplan/internal/model"
)

// SelectModules returns a new Plan with only the top-ranked modules. Modules
// must already be sorted by rank. If maxModules is <= 0 or >= len(modules),
// the plan is returned unchanged.
func SelectModules(p *model.Plan, maxModules int) *model.Plan {
	if maxModules <= 0 || maxModules >= len(p.Modules) {
		return p
	}

	selected := p.Modules[:maxModules]
	ids := make(map[string]struct{}, maxModules)
	for i := range selected {
		ids[selected[i].ID] = struct{}{}
	}

	var imports []model.Import
	for i := range p.Imports {
		imp := &p.Imports[i]
		_, fromOK := ids[imp.From]
		_, toOK := ids[imp.To]
		if fromOK && toOK {
			imports = append(imports, *imp)
		}
	}

	return derive(p, selected, imports)
}

// FilterByGroup returns a new Plan containing only modules whose group
// contains substr (case-insensitive), with every import touching them.
func FilterByGroup(p *model.Plan, substr string) *model.Plan {
	lower := strings.ToLower(substr)
	return filter(p, func(a *model.Assignment) bool {
		return a.Group != model.NoGroup && strings.Contains(strings.ToLower(a.Group), lower)
	})
}

// FilterByModule returns a new Plan containing only modules whose identifier
// contains substr (case-insensitive), with every import touching them.
func FilterByModule(p *model.Plan, substr string) *model.Plan {
	lower := strings.ToLower(substr)
	return filter(p, func(a *model.Assignment) bool {
		return strings.Contains(strings.ToLower(a.ID), lower)
	})
}

// FilterAPI returns a new Plan containing only API modules.
func FilterAPI(p *model.Plan) *model.Plan {
	return filter(p, func(a *model.Assignment) bool { return a.API })
}

func filter(p *model.Plan, keep func(*model.Assignment) bool) *model.Plan {
	matched := make(map[string]struct{})
	var modules []model.Assignment
	for i := range p.Modules {
		if keep(&p.Modules[i]) {
			matched[p.Modules[i].ID] = struct{}{}
			modules = append(modules, p.Modules[i])
		}
	}

	var imports []model.Import
	for i := range p.Imports {
		imp := &p.Imports[i]
		_, fromOK := matched[imp.From]
		_, toOK := matched[imp.To]
		if fromOK || toOK {
			imports = append(imports, *imp)
		}
	}

	return derive(p, modules, imports)
}

// derive copies the plan header and entries, and keeps the groups that still
// have a module.
func derive(p *model.Plan, modules []model.Assignment, imports []model.Import) *model.Plan {
	used := make(map[string]struct{})
	for i := range modules {
		used[modules[i].Group] = struct{}{}
	}
	var groups []model.GroupSummary
	for i := range p.Groups {
		if _, ok := used[p.Groups[i].Group]; ok {
			groups = append(groups, p.Groups[i])
		}
	}

	return &model.Plan{
		Project:  p.Project,
		Base:     p.Base,
		Strategy: p.Strategy,
		Source:   p.Source,
		Entries:  p.Entries,
		Groups:   groups,
		Modules:  modules,
		Imports:  imports,
	}
}
