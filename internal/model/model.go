// Package model defines core data structures for chunkplan.
package model

import (
	"path"
	"strings"
)

// NoGroup is the group name meaning "let the bundler's default chunking apply".
const NoGroup = ""

// Entry is a named top-level document the bundler starts traversal from.
type Entry struct {
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	Path string `mapstructure:"path" yaml:"path" json:"path"` // Relative to project root, slash separated
}

// ID returns the module identifier of the entry document.
func (e Entry) ID() string {
	return ModuleID(e.Path)
}

// IsAPI reports whether the entry is an API-only document: its name starts
// with "api" or its path has an api/ directory segment.
func (e Entry) IsAPI() bool {
	return strings.HasPrefix(e.Name, "api") || strings.Contains(e.ID(), "/api/")
}

// ModuleID converts a root-relative path into a root-anchored module identifier.
// Identifiers always use forward slashes and start with "/".
func ModuleID(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if strings.HasPrefix(rel, "/") {
		return rel
	}
	return "/" + rel
}

// StripQuery removes a query-like suffix ("?raw", "?url") from a module identifier.
func StripQuery(id string) string {
	if i := strings.IndexByte(id, '?'); i >= 0 {
		return id[:i]
	}
	return id
}

// RelPath converts a module identifier back into a root-relative path.
func RelPath(id string) string {
	return strings.TrimPrefix(StripQuery(id), "/")
}

// Base returns the final element of a module identifier, without query.
func Base(id string) string {
	return path.Base(StripQuery(id))
}

// Assignment is the classification result for a single module.
type Assignment struct {
	ID    string  `json:"id" yaml:"id"`
	Group string  `json:"group" yaml:"group"`
	API   bool    `json:"api" yaml:"api"`
	Rank  float64 `json:"rank" yaml:"rank"`
}

// EntryOutput describes the output file computed for an entry.
type EntryOutput struct {
	Name     string `json:"name" yaml:"name"`
	Source   string `json:"source" yaml:"source"`
	API      bool   `json:"api" yaml:"api"`
	Output   string `json:"output" yaml:"output"`     // Entry chunk file name
	Document string `json:"document" yaml:"document"` // Emitted HTML file name
}

// GroupSummary counts the modules routed to one group.
type GroupSummary struct {
	Group   string `json:"group" yaml:"group"`
	Modules int    `json:"modules" yaml:"modules"`
	API     bool   `json:"api" yaml:"api"` // Loadable by API pages
	File    string `json:"file" yaml:"file"`
}

// Import is one edge of the import graph: From imports To.
type Import struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Plan is the complete chunking decision for one build run, ready for serialization.
type Plan struct {
	Project  string         `json:"project" yaml:"project"`
	Base     string         `json:"base" yaml:"base"`
	Strategy string         `json:"strategy" yaml:"strategy"`
	Source   string         `json:"source" yaml:"source"`
	Entries  []EntryOutput  `json:"entries" yaml:"entries"`
	Groups   []GroupSummary `json:"groups" yaml:"groups"`
	Modules  []Assignment   `json:"modules" yaml:"modules"`
	Imports  []Import       `json:"imports,omitempty" yaml:"imports,omitempty"`
}

// OutputType discriminates emitted bundle files.
type OutputType string

const (
	Asset OutputType = "asset"
	Chunk OutputType = "chunk"
)

// OutputFile is one emitted file of a bundle description.
type OutputFile struct {
	FileName string     // Relative to the output directory, slash separated
	Type     OutputType
	Name     string // Chunk or asset name as reported by the bundler manifest, if known
	IsEntry  bool
}

// Bundle maps output file names to their descriptors.
type Bundle map[string]OutputFile
