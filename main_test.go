package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/chunkplan/internal/config"
	"github.com/phobologic/chunkplan/internal/model"
)

const sampleConfig = `base: /pokesleep-tool/
entries:
  - name: reserchEn
    path: index.html
  - name: apiStrength
    path: api/strength.html
api:
  entries: [apiStrength]
`

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "chunkplan.yaml", sampleConfig)
	writeTestFile(t, dir, "index.html", `<script type="module" src="/src/main.tsx"></script>`)
	writeTestFile(t, dir, "api/strength.html", `<script type="module" src="/src/api/strength.ts"></script>`)
	writeTestFile(t, dir, "src/main.tsx", `import React from "react";
import { calc } from "./util/strength";
import "./ui/Dialog";
`)
	writeTestFile(t, dir, "src/api/strength.ts", `import { calc } from "../util/strength";
import pokemon from "../data/pokemon.json";
`)
	writeTestFile(t, dir, "src/util/strength.ts", "export const calc = 1;\n")
	writeTestFile(t, dir, "src/ui/Dialog.tsx", `import Button from "@mui/material/Button";`)
	writeTestFile(t, dir, "src/data/pokemon.json", "{}")
	return dir
}

// ageProject moves every file's mtime into the past so cache freshness does
// not depend on file system timestamp granularity.
func ageProject(t *testing.T, dir string) {
	t.Helper()
	old := time.Now().Add(-time.Hour)
	require.NoError(t, filepath.Walk(dir, func(path string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return os.Chtimes(path, old, old)
	}))
}

func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	require.NoError(t, err, "stderr: %s", stderr.String())
	return stdout.String()
}

func TestRunBasic(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, dir)

	assert.True(t, strings.HasPrefix(out, "project: "), out)
	assert.Contains(t, out, "base: /pokesleep-tool/")
	assert.Contains(t, out, "strategy: reachability")
	assert.Contains(t, out, "entries[2]{name,source,api,output,document}:")
	assert.Contains(t, out, "/src/util/strength.ts,api-util,true,")
	assert.Contains(t, out, "/src/data/pokemon.json,api-pokemon,true,")
	assert.Contains(t, out, "/node_modules/react,react,false,")
	assert.Contains(t, out, "/src/ui/Dialog.tsx,ui,false,")
	assert.Contains(t, out, "imports[")
}

func TestRunPlanSubcommand(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	assert.Equal(t, runOK(t, dir), runOK(t, "plan", dir))
	assert.Equal(t, runOK(t, dir), runOK(t, "plan", "-C", dir))
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	out := runOK(t, "-V")
	assert.Equal(t, "chunkplan dev\n", out)
}

func TestRunFormatJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var p model.Plan
	require.NoError(t, json.Unmarshal([]byte(runOK(t, "--format", "json", dir)), &p))
	assert.Equal(t, "reachability", p.Strategy)
	require.Len(t, p.Entries, 2)
	assert.True(t, strings.HasPrefix(p.Entries[1].Output, "api/apiStrength-"))
}

func TestRunFormatYAML(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var p model.Plan
	require.NoError(t, yaml.Unmarshal([]byte(runOK(t, "--format", "yaml", dir)), &p))
	assert.Equal(t, "/pokesleep-tool/", p.Base)
	assert.NotEmpty(t, p.Modules)
}

func TestRunUnknownFormat(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--format", "xml", createSampleProject(t)}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestRunMaxModules(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	assert.Contains(t, runOK(t, "-n", "2", dir), "modules[2]{id,group,api,rank}:")
}

func TestRunGroupFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, "--group", "api-util", dir)
	assert.Contains(t, out, "modules[1]{id,group,api,rank}:")
	assert.Contains(t, out, "groups[1]{group,modules,api,file}:")
}

func TestRunModuleFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, "-m", "Dialog", dir)
	assert.Contains(t, out, "modules[1]{id,group,api,rank}:")
	assert.Contains(t, out, "/src/ui/Dialog.tsx,/node_modules/@mui/material/Button")
}

func TestRunAPIOnly(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, "--api-only", dir)
	assert.Contains(t, out, "/src/util/strength.ts,api-util,true,")
	assert.NotContains(t, out, "/src/ui/Dialog.tsx,")
	assert.NotContains(t, out, ",false,0.")
}

func TestRunStrategyOverride(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, "--strategy", "one-level", "--shared", "ui", dir)
	assert.Contains(t, out, "strategy: one-level")
	assert.Contains(t, out, "/src/util/strength.ts,util,false,")
}

func TestRunInvalidStrategy(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--strategy", "everything", createSampleProject(t)}, &stdout, &stderr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalid), "unexpected error: %v", err)
}

func TestRunNotADirectory(t *testing.T) {
	t.Parallel()
	f := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("hi"), 0o644))

	var stdout, stderr bytes.Buffer
	err := run([]string{f}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	ageProject(t, dir)
	cachePath := filepath.Join(t.TempDir(), "plan.cache")

	first := runOK(t, "--cache", cachePath, dir)
	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, first, string(data))

	// A fresh cache is served as is.
	require.NoError(t, os.WriteFile(cachePath, []byte("cached\n"), 0o644))
	assert.Equal(t, "cached\n", runOK(t, "--cache", cachePath, dir))

	// Touching a source file invalidates it.
	now := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "src/util/strength.ts"), now, now))
	assert.Equal(t, first, runOK(t, "--cache", cachePath, dir))
}

func TestRunCacheSkippedWhenFiltered(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	ageProject(t, dir)
	cachePath := filepath.Join(t.TempDir(), "plan.cache")
	require.NoError(t, os.WriteFile(cachePath, []byte("cached\n"), 0o644))

	out := runOK(t, "--cache", cachePath, "-n", "1", dir)
	assert.Contains(t, out, "modules[1]")

	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, "cached\n", string(data), "filtered output must not overwrite the cache")
}

func TestRunCacheSkippedWhenOverridden(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	ageProject(t, dir)
	cachePath := filepath.Join(t.TempDir(), "plan.cache")
	runOK(t, "--cache", cachePath, dir)
	cached, err := os.ReadFile(cachePath)
	require.NoError(t, err)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--strategy", "direct"}, "strategy: direct"},
		{[]string{"--shared", "ui"}, "/src/util/strength.ts,util,false,"},
	}
	for _, tt := range tests {
		args := append(append([]string{"--cache", cachePath}, tt.args...), dir)
		out := runOK(t, args...)
		assert.Contains(t, out, tt.want)
		assert.Equal(t, runOK(t, append(tt.args, dir)...), out)
	}

	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, string(cached), string(data), "overridden output must not overwrite the cache")
}

func TestRunConfigFileFlag(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	alt := filepath.Join(t.TempDir(), "alt.yaml")
	writeTestFile(t, filepath.Dir(alt), "alt.yaml", sampleConfig+"membership:\n  strategy: recursive\n")

	assert.Contains(t, runOK(t, "--config", alt, dir), "strategy: recursive")
}

func TestClassifyCommand(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, "classify", "-C", dir, "/node_modules/react/index.js", "src/util/strength.ts", "/src/main.tsx")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"/node_modules/react/index.js", "react"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"/src/util/strength.ts", "util"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"/src/main.tsx", "-"}, strings.Fields(lines[2]))
}

func TestClassifyCommandAPIExplain(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, "classify", "-C", dir, "--api", "--explain", "/src/data/pokemon.json", "/node_modules/react/index.js")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "api-pokemon")
	assert.Contains(t, lines[0], "contains pokemon.json")
	assert.Contains(t, lines[1], " - ")
	assert.Contains(t, lines[1], "dependency")
}

func TestNamesCommand(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out := runOK(t, "names", "-C", dir)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ENTRY", "API", "OUTPUT", "DOCUMENT"}, strings.Fields(lines[0]))

	ui := strings.Fields(lines[1])
	assert.Equal(t, "reserchEn", ui[0])
	assert.Equal(t, "false", ui[1])
	assert.True(t, strings.HasPrefix(ui[2], "assets/reserchEn-"))
	assert.Equal(t, "index.html", ui[3])

	api := strings.Fields(lines[2])
	assert.Equal(t, "true", api[1])
	assert.True(t, strings.HasPrefix(api[2], "api/apiStrength-"))
	assert.Equal(t, "api/strength.html", api[3])
}

func TestConfigCommand(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(runOK(t, "config", "-C", dir)), &cfg))
	assert.Equal(t, "/pokesleep-tool/", cfg.Base)
	assert.Equal(t, []string{"apiStrength"}, cfg.API.Entries)
	assert.Len(t, cfg.Entries, 2)
	assert.Equal(t, "reachability", cfg.Membership.Strategy)
}
