package graph

import (
	"math"
	"testing"
)

func chain(t *testing.T) *ImportGraph {
	t.Helper()
	ig := New()
	ig.AddEntry("/api/strength.html")
	ig.AddEntry("/index.html")
	mustImport(t, ig, "/api/strength.html", "/src/api/strength.ts")
	mustImport(t, ig, "/src/api/strength.ts", "/src/util/strength.ts")
	mustImport(t, ig, "/src/util/strength.ts", "/src/data/pokemon.json")
	mustImport(t, ig, "/index.html", "/src/main.tsx")
	mustImport(t, ig, "/src/main.tsx", "/node_modules/react/index.js")
	mustImport(t, ig, "/src/main.tsx", "/src/util/strength.ts")
	return ig
}

func mustImport(t *testing.T, ig *ImportGraph, from, to string) {
	t.Helper()
	if err := ig.AddImport(from, to); err != nil {
		t.Fatalf("AddImport(%s, %s): %v", from, to, err)
	}
}

func TestAddModuleIdempotent(t *testing.T) {
	t.Parallel()

	ig := New()
	ig.AddModule("/a.ts")
	ig.AddModule("/a.ts")
	mustImport(t, ig, "/a.ts", "/b.ts")
	mustImport(t, ig, "/a.ts", "/b.ts")

	if ig.Len() != 2 {
		t.Errorf("Len = %d, want 2", ig.Len())
	}
	if got := ig.Edges(); len(got) != 1 {
		t.Errorf("expected 1 edge, got %+v", got)
	}
}

func TestModulesInsertionOrder(t *testing.T) {
	t.Parallel()

	ig := chain(t)
	got := ig.Modules()
	want := []string{
		"/api/strength.html",
		"/index.html",
		"/src/api/strength.ts",
		"/src/util/strength.ts",
		"/src/data/pokemon.json",
		"/src/main.tsx",
		"/node_modules/react/index.js",
	}
	if len(got) != len(want) {
		t.Fatalf("Modules = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Modules[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestImportersAndImports(t *testing.T) {
	t.Parallel()

	ig := chain(t)

	importers := ig.Importers("/src/util/strength.ts")
	if len(importers) != 2 || importers[0] != "/src/api/strength.ts" || importers[1] != "/src/main.tsx" {
		t.Errorf("Importers = %v", importers)
	}
	imports := ig.Imports("/src/main.tsx")
	if len(imports) != 2 || imports[0] != "/node_modules/react/index.js" {
		t.Errorf("Imports = %v", imports)
	}
	if got := ig.Importers("/api/strength.html"); got != nil {
		t.Errorf("entry importers = %v, want nil", got)
	}

	// Cached maps are invalidated by mutation.
	mustImport(t, ig, "/src/ui/Dialog.tsx", "/src/util/strength.ts")
	if got := ig.Importers("/src/util/strength.ts"); len(got) != 3 {
		t.Errorf("Importers after mutation = %v", got)
	}
}

func TestEntries(t *testing.T) {
	t.Parallel()

	ig := chain(t)
	if !ig.IsEntry("/index.html") || ig.IsEntry("/src/main.tsx") {
		t.Error("entry flags wrong")
	}
	entries := ig.Entries()
	if len(entries) != 2 || entries[0] != "/api/strength.html" {
		t.Errorf("Entries = %v", entries)
	}
}

func TestReachable(t *testing.T) {
	t.Parallel()

	ig := chain(t)
	got := ig.Reachable("/api/strength.html")

	for _, id := range []string{"/api/strength.html", "/src/api/strength.ts", "/src/util/strength.ts", "/src/data/pokemon.json"} {
		if _, ok := got[id]; !ok {
			t.Errorf("%s should be reachable", id)
		}
	}
	for _, id := range []string{"/src/main.tsx", "/node_modules/react/index.js", "/index.html"} {
		if _, ok := got[id]; ok {
			t.Errorf("%s should not be reachable", id)
		}
	}
}

func TestReachableCycle(t *testing.T) {
	t.Parallel()

	ig := New()
	mustImport(t, ig, "/a.ts", "/b.ts")
	mustImport(t, ig, "/b.ts", "/c.ts")
	mustImport(t, ig, "/c.ts", "/a.ts")

	got := ig.Reachable("/b.ts", "/missing.ts")
	if len(got) != 3 {
		t.Errorf("expected 3 reachable modules, got %v", got)
	}
}

func TestRankUniform(t *testing.T) {
	t.Parallel()

	ig := New()
	ig.AddModule("/a.ts")
	ig.AddModule("/b.ts")
	ig.AddModule("/c.ts")

	ranks := Rank(ig)

	expected := 1.0 / 3.0
	for id, r := range ranks {
		if math.Abs(r-expected) > 1e-9 {
			t.Errorf("%s rank = %f, want %f", id, r, expected)
		}
	}
}

func TestRankWithEdges(t *testing.T) {
	t.Parallel()

	ig := New()
	mustImport(t, ig, "/a.ts", "/b.ts")
	mustImport(t, ig, "/c.ts", "/b.ts")

	ranks := Rank(ig)

	// b.ts is imported by both a.ts and c.ts
	if ranks["/b.ts"] <= ranks["/a.ts"] || ranks["/b.ts"] <= ranks["/c.ts"] {
		t.Errorf("b.ts should rank highest: %v", ranks)
	}

	var sum float64
	for _, r := range ranks {
		sum += r
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("ranks sum to %f, expected ~1.0", sum)
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	if ranks := Rank(New()); ranks != nil {
		t.Errorf("expected nil, got %v", ranks)
	}
}
