package reach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/chunkplan/internal/graph"
)

const (
	apiEntry = "/api/strength.html"
	uiEntry  = "/index.html"
	modA     = "/src/util/format.ts"
	modB     = "/src/util/strength.ts"
)

// threeNodeChain builds A <- B <- C, where C is the API entry document and
// arrows point from an imported module to its importer.
func threeNodeChain(t *testing.T) *graph.ImportGraph {
	t.Helper()
	g := graph.New()
	g.AddEntry(apiEntry)
	require.NoError(t, g.AddImport(apiEntry, modB))
	require.NoError(t, g.AddImport(modB, modA))
	return g
}

func resolver(t *testing.T, g *graph.ImportGraph, s Strategy) *Resolver {
	t.Helper()
	r, err := New(g, Options{Strategy: s, APIEntries: []string{apiEntry}, UIEntries: []string{uiEntry}})
	require.NoError(t, err)
	return r
}

func TestThreeNodeChainStrategies(t *testing.T) {
	t.Parallel()
	g := threeNodeChain(t)

	assert.True(t, resolver(t, g, Recursive).IsAPIModule(modA), "recursive walks the whole importer chain")
	assert.True(t, resolver(t, g, Reachability).IsAPIModule(modA))
	assert.True(t, resolver(t, g, Accumulated).IsAPIModule(modA))

	// Known limitation: one-level only inspects immediate importers, and B is
	// not an entry point, so A is misclassified as a UI module.
	oneLevel := resolver(t, g, OneLevel)
	assert.False(t, oneLevel.IsAPIModule(modA), "one-level under-detects multi-hop chains")
	assert.True(t, oneLevel.IsAPIModule(modB))

	// Direct only recognises the entry document itself.
	direct := resolver(t, g, Direct)
	assert.True(t, direct.IsAPIModule(apiEntry))
	assert.False(t, direct.IsAPIModule(modB))
}

func TestRecursiveTerminatesOnCycle(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEntry(uiEntry)
	require.NoError(t, g.AddImport(uiEntry, "/src/a.ts"))
	require.NoError(t, g.AddImport("/src/a.ts", "/src/b.ts"))
	require.NoError(t, g.AddImport("/src/b.ts", "/src/a.ts"))

	r := resolver(t, g, Recursive)
	assert.False(t, r.IsAPIModule("/src/a.ts"))
	assert.False(t, r.IsAPIModule("/src/b.ts"))
}

func TestReachabilityExcludesUIOnlyModules(t *testing.T) {
	t.Parallel()

	g := threeNodeChain(t)
	g.AddEntry(uiEntry)
	require.NoError(t, g.AddImport(uiEntry, "/src/main.tsx"))
	require.NoError(t, g.AddImport("/src/main.tsx", "/node_modules/react/index.js"))

	r := resolver(t, g, Reachability)
	assert.False(t, r.IsAPIModule("/src/main.tsx"))
	assert.False(t, r.IsAPIModule("/node_modules/react/index.js"))
	assert.Equal(t, []string{apiEntry, modA, modB}, r.Set())
}

func TestSharedPolicy(t *testing.T) {
	t.Parallel()

	g := threeNodeChain(t)
	g.AddEntry(uiEntry)
	require.NoError(t, g.AddImport(uiEntry, modB))

	shared, err := New(g, Options{APIEntries: []string{apiEntry}, UIEntries: []string{uiEntry}})
	require.NoError(t, err)
	assert.True(t, shared.IsAPIModule(modB), "default policy keeps shared modules in the API set")

	uiWins, err := New(g, Options{Shared: SharedUI, APIEntries: []string{apiEntry}, UIEntries: []string{uiEntry}})
	require.NoError(t, err)
	assert.False(t, uiWins.IsAPIModule(modB))
	assert.False(t, uiWins.IsAPIModule(modA))
	assert.True(t, uiWins.IsAPIModule(apiEntry))
	assert.Equal(t, []string{apiEntry}, uiWins.Set())
}

func TestAccumulatedParseOrderAndRepair(t *testing.T) {
	t.Parallel()

	// A is parsed before its importer joins the set, so the single pass misses it.
	g := graph.New()
	g.AddModule(modA)
	g.AddEntry(apiEntry)
	require.NoError(t, g.AddImport(apiEntry, modB))
	require.NoError(t, g.AddImport(modB, modA))

	r := resolver(t, g, Accumulated)
	assert.True(t, r.IsAPIModule(modB))
	assert.False(t, r.IsAPIModule(modA))

	groups := map[string]string{modA: "api-util", modB: "api-util"}
	added := r.Repair(func(id string) string { return groups[id] }, "api-")
	assert.Equal(t, 1, added)
	assert.True(t, r.IsAPIModule(modA))
}

func TestUnknownModuleFallsBackToDirect(t *testing.T) {
	t.Parallel()

	r := resolver(t, threeNodeChain(t), Reachability)
	assert.True(t, r.IsAPIModule(apiEntry+"?html-proxy&index=0.js"))
	assert.False(t, r.IsAPIModule("/src/unknown.ts"))
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for _, s := range Strategies {
		got, err := ParseStrategy(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("guess")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = New(graph.New(), Options{Strategy: "guess"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
