package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"

	"github.com/phobologic/chunkplan/internal/graph"
	"github.com/phobologic/chunkplan/internal/model"
	"github.com/phobologic/chunkplan/internal/resolve"
)

// Metafile is the subset of the esbuild metafile read here.
type Metafile struct {
	Inputs map[string]MetafileInput `json:"inputs"`
}

// MetafileInput is one bundled input file.
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"`
}

// MetafileImport is one resolved import of an input.
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

var assetLoaders = map[string]api.Loader{
	".json": api.LoaderJSON,
	".css":  api.LoaderCSS,
	".svg":  api.LoaderFile,
	".png":  api.LoaderFile,
	".webp": api.LoaderFile,
	".jpg":  api.LoaderFile,
	".woff": api.LoaderFile,
}

type esbuildLoader struct {
	opts Options
}

// Load resolves the entry documents' module scripts, external and inline,
// bundles them in memory and turns the metafile into the import graph.
func (l *esbuildLoader) Load(ctx context.Context) (*Result, error) {
	log := l.opts.Logger
	root, err := filepath.Abs(l.opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	g := graph.New()
	resolver := resolve.New(root)
	var entryPoints []string
	seen := make(map[string]struct{})

	for _, e := range l.opts.Entries {
		g.AddEntry(e.ID())
	}
	docs, err := newDocumentReader(l.opts)
	if err != nil {
		return nil, err
	}
	for _, e := range l.opts.Entries {
		f, err := os.Open(filepath.Join(root, filepath.FromSlash(e.Path)))
		if err != nil {
			log.Warn("entry document unreadable, skipping", zap.String("entry", e.Name), zap.Error(err))
			continue
		}
		imports, err := docs.imports(e, f)
		_ = f.Close()
		if err != nil {
			log.Warn("entry document unparseable, skipping", zap.String("entry", e.Name), zap.Error(err))
			continue
		}
		for _, imp := range imports {
			id, err := resolver.Resolve(e.ID(), imp.Specifier)
			if err != nil {
				if !errors.Is(err, resolve.ErrExternal) {
					log.Warn("unresolved entry import",
						zap.String("entry", e.Name),
						zap.String("specifier", imp.Specifier),
						zap.Int("line", imp.Line),
						zap.Error(err))
				}
				continue
			}
			if err := g.AddImport(e.ID(), id); err != nil {
				return nil, err
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			// Virtual ids of packages that are not installed stay graph-only.
			rel := model.RelPath(id)
			if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err == nil && info.Mode().IsRegular() {
				entryPoints = append(entryPoints, rel)
			}
		}
	}
	if len(entryPoints) == 0 {
		return &Result{Graph: g}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:   entryPoints,
		AbsWorkingDir: root,
		Outdir:        filepath.Join(root, ".chunkplan-out"),
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Splitting:     true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Loader:        assetLoaders,
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return nil, fmt.Errorf("esbuild: %d errors: %s", len(result.Errors), strings.TrimSpace(strings.Join(msgs, "")))
	}
	for _, w := range result.Warnings {
		log.Debug("esbuild warning", zap.String("text", w.Text))
	}

	var meta Metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}
	if err := AddMetafile(g, &meta); err != nil {
		return nil, err
	}
	return &Result{Graph: g}, nil
}

// AddMetafile adds every input and non-external import of meta to g, visiting
// inputs in sorted order so module order is stable.
func AddMetafile(g *graph.ImportGraph, meta *Metafile) error {
	inputs := make([]string, 0, len(meta.Inputs))
	for p := range meta.Inputs {
		inputs = append(inputs, p)
	}
	sort.Strings(inputs)

	for _, p := range inputs {
		from := metafileID(p)
		g.AddModule(from)
		for _, imp := range meta.Inputs[p].Imports {
			if imp.External || imp.Path == "" {
				continue
			}
			if err := g.AddImport(from, metafileID(imp.Path)); err != nil {
				return err
			}
		}
	}
	return nil
}

// metafileID converts a metafile path (relative to the working directory,
// possibly with a namespace prefix such as "file:") to a module identifier.
func metafileID(p string) string {
	if i := strings.Index(p, ":"); i > 0 && !strings.Contains(p[:i], "/") {
		p = p[i+1:]
	}
	return model.ModuleID(p)
}
