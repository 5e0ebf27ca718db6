// Package postprocess rewrites emitted API pages so they load no UI framework
// chunks.
package postprocess

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/chunkplan/internal/htmlstrip"
	"github.com/phobologic/chunkplan/internal/model"
)

// DefaultPages selects the API documents among the emitted files.
var DefaultPages = []string{"api/*.html", "**/api/*.html"}

// Options configures Run.
type Options struct {
	// Pages are glob patterns over output-relative paths.
	Pages []string
	// Expected are the output paths of the configured API documents. Those
	// missing from the output are logged and skipped.
	Expected []string
	// Markers match framework script URLs.
	Markers []string
	// FrameworkGroups name chunks that API pages must not load.
	FrameworkGroups []string
	// APIPrefix marks chunk names that API pages may load.
	APIPrefix string
	// DryRun reports removals without writing.
	DryRun bool
	// Concurrency bounds the number of pages rewritten at once.
	Concurrency int
	Logger      *zap.Logger
}

// PageResult reports what happened to one page.
type PageResult struct {
	Path    string   `json:"path" yaml:"path"`
	Removed []string `json:"removed" yaml:"removed"`
	Written bool     `json:"written" yaml:"written"`
}

// Run post-processes the output directory dir.
func Run(ctx context.Context, dir string, opts Options) ([]PageResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := opts.Pages
	if len(patterns) == 0 {
		patterns = DefaultPages
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid page pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}

	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		logger.Debug("no bundler manifest, deriving chunk names from file names", zap.String("dir", dir))
	}
	bundle, err := Describe(dir, manifest)
	if err != nil {
		return nil, err
	}

	excluded, keep := partition(bundle, opts.FrameworkGroups, opts.APIPrefix)
	rewriter := htmlstrip.New(opts.Markers, excluded, keep)

	pages := selectPages(bundle, globs)
	for _, want := range opts.Expected {
		if _, ok := bundle[want]; !ok {
			logger.Warn("api page missing from output, skipping", zap.String("page", want))
		}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	results := make([]PageResult, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, page := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := rewritePage(dir, page, rewriter, opts.DryRun)
			if err != nil {
				return err
			}
			results[i] = res
			if len(res.Removed) > 0 {
				logger.Info("stripped framework references",
					zap.String("page", page),
					zap.Strings("removed", res.Removed),
					zap.Bool("dry_run", opts.DryRun))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func rewritePage(dir, page string, r *htmlstrip.Rewriter, dryRun bool) (PageResult, error) {
	res := PageResult{Path: page}
	full := filepath.Join(dir, filepath.FromSlash(page))
	info, err := os.Stat(full)
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", page, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", page, err)
	}
	out, removed, err := r.Strip(string(data))
	if err != nil {
		return res, fmt.Errorf("%s: %w", page, err)
	}
	res.Removed = removed
	if len(removed) == 0 || dryRun {
		return res, nil
	}
	if err := os.WriteFile(full, []byte(out), info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("write %s: %w", page, err)
	}
	res.Written = true
	return res, nil
}

// partition splits chunk files into those API pages must drop and those
// marker matching must keep.
func partition(bundle model.Bundle, framework []string, apiPrefix string) (excluded, keep []string) {
	isFramework := make(map[string]struct{}, len(framework))
	for _, g := range framework {
		isFramework[g] = struct{}{}
	}
	for file, out := range bundle {
		if out.Type != model.Chunk || out.IsEntry {
			continue
		}
		if _, ok := isFramework[out.Name]; ok {
			excluded = append(excluded, file)
			continue
		}
		if apiPrefix != "" && strings.HasPrefix(out.Name, apiPrefix) {
			keep = append(keep, file)
		}
	}
	sort.Strings(excluded)
	sort.Strings(keep)
	return excluded, keep
}

func selectPages(bundle model.Bundle, globs []glob.Glob) []string {
	var pages []string
	for file, out := range bundle {
		if out.Type != model.Asset || path.Ext(file) != ".html" {
			continue
		}
		for _, g := range globs {
			if g.Match(file) {
				pages = append(pages, file)
				break
			}
		}
	}
	sort.Strings(pages)
	return pages
}
