package ranking

import (
	"testing"

	"github.com/phobologic/chunkplan/internal/model"
)

func makePlan() *model.Plan {
	return &model.Plan{
		Project:  "test",
		Strategy: "reachability",
		Groups: []model.GroupSummary{
			{Group: "api-util", Modules: 1, API: true},
			{Group: "react", Modules: 1},
			{Group: "util", Modules: 1},
		},
		Modules: []model.Assignment{
			{ID: "/src/main.tsx", Rank: 0.4},
			{ID: "/src/api/strength.ts", API: true, Rank: 0.3},
			{ID: "/node_modules/react", Group: "react", Rank: 0.2},
			{ID: "/src/util/strength.ts", Group: "api-util", API: true, Rank: 0.1},
		},
		Imports: []model.Import{
			{From: "/src/api/strength.ts", To: "/src/util/strength.ts"},
			{From: "/src/main.tsx", To: "/node_modules/react"},
			{From: "/src/main.tsx", To: "/src/api/strength.ts"},
		},
	}
}

func TestSelectModulesAll(t *testing.T) {
	t.Parallel()

	p := makePlan()
	if got := SelectModules(p, 0); got != p {
		t.Error("maxModules=0 should return original")
	}
	if got := SelectModules(p, 5); got != p {
		t.Error("maxModules > len should return original")
	}
	if got := SelectModules(p, 4); got != p {
		t.Error("maxModules == len should return original")
	}
}

func TestSelectModulesSubset(t *testing.T) {
	t.Parallel()

	got := SelectModules(makePlan(), 2)

	if len(got.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(got.Modules))
	}
	if got.Modules[0].ID != "/src/main.tsx" || got.Modules[1].ID != "/src/api/strength.ts" {
		t.Errorf("unexpected modules: %+v", got.Modules)
	}
	// Only main.tsx -> api/strength.ts has both ends selected.
	if len(got.Imports) != 1 || got.Imports[0].To != "/src/api/strength.ts" {
		t.Errorf("unexpected imports: %+v", got.Imports)
	}
	if len(got.Groups) != 0 {
		t.Errorf("expected no groups, got %+v", got.Groups)
	}
	if got.Strategy != "reachability" {
		t.Errorf("header not copied: %+v", got)
	}
}

func TestFilterByGroup(t *testing.T) {
	t.Parallel()

	got := FilterByGroup(makePlan(), "UTIL")

	if len(got.Modules) != 1 || got.Modules[0].ID != "/src/util/strength.ts" {
		t.Fatalf("unexpected modules: %+v", got.Modules)
	}
	if len(got.Groups) != 1 || got.Groups[0].Group != "api-util" {
		t.Errorf("unexpected groups: %+v", got.Groups)
	}
	if len(got.Imports) != 1 || got.Imports[0].From != "/src/api/strength.ts" {
		t.Errorf("unexpected imports: %+v", got.Imports)
	}
}

func TestFilterByGroupSkipsUngrouped(t *testing.T) {
	t.Parallel()

	got := FilterByGroup(makePlan(), "")
	if len(got.Modules) != 2 {
		t.Errorf("expected only grouped modules, got %+v", got.Modules)
	}
}

func TestFilterByModule(t *testing.T) {
	t.Parallel()

	got := FilterByModule(makePlan(), "main")

	if len(got.Modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(got.Modules))
	}
	if len(got.Imports) != 2 {
		t.Errorf("expected both imports of main.tsx, got %+v", got.Imports)
	}
}

func TestFilterAPI(t *testing.T) {
	t.Parallel()

	got := FilterAPI(makePlan())

	if len(got.Modules) != 2 {
		t.Fatalf("expected 2 api modules, got %+v", got.Modules)
	}
	for _, m := range got.Modules {
		if !m.API {
			t.Errorf("non-api module %s kept", m.ID)
		}
	}
	if len(got.Imports) != 2 {
		t.Errorf("expected imports touching api modules, got %+v", got.Imports)
	}
}
