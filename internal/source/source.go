// Package source builds the import graph of a front-end project, either by
// scanning its sources with tree-sitter or from an esbuild metafile.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/phobologic/chunkplan/internal/discover"
	"github.com/phobologic/chunkplan/internal/graph"
	"github.com/phobologic/chunkplan/internal/model"
)

// ErrUnknownKind is returned for an unsupported source kind.
var ErrUnknownKind = errors.New("source: unknown kind")

// Kinds of graph source.
const (
	Scan    = "scan"
	Esbuild = "esbuild"
)

// Loader produces the import graph for one planning run.
type Loader interface {
	Load(ctx context.Context) (*Result, error)
}

// Result is a loaded import graph.
type Result struct {
	Graph *graph.ImportGraph
	// Files are the project files the graph was built from.
	Files []discover.FileEntry
}

// Options configures a Loader.
type Options struct {
	Root    string
	Entries []model.Entry
	// APIEntries are the names of entries whose documents never link the
	// Stub packages.
	APIEntries []string
	Stub       []string

	Ignore      []string
	MaxFileSize int64
	Workers     int

	Cache    *Cache
	Progress Progress
	Logger   *zap.Logger
}

// New returns the Loader for kind.
func New(kind string, opts Options) (Loader, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	switch kind {
	case Scan, "":
		return &scanLoader{opts: opts}, nil
	case Esbuild:
		return &esbuildLoader{opts: opts}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func (o Options) isAPIEntry(name string) bool {
	for _, n := range o.APIEntries {
		if n == name {
			return true
		}
	}
	return false
}

// stubbed reports whether spec names one of the Stub packages or a subpath of
// one ("react/jsx-runtime").
func (o Options) stubbed(spec string) bool {
	for _, pkg := range o.Stub {
		if spec == pkg || strings.HasPrefix(spec, pkg+"/") {
			return true
		}
	}
	return false
}

// documentSpecifier turns an HTML script URL into an import specifier relative
// to the document.
func documentSpecifier(src string) string {
	switch {
	case strings.HasPrefix(src, "/"), strings.HasPrefix(src, "./"), strings.HasPrefix(src, "../"),
		strings.Contains(src, "://"):
		return src
	}
	return "./" + src
}
