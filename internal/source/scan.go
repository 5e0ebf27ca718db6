package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/phobologic/chunkplan/internal/discover"
	"github.com/phobologic/chunkplan/internal/graph"
	"github.com/phobologic/chunkplan/internal/lang"
	"github.com/phobologic/chunkplan/internal/model"
	"github.com/phobologic/chunkplan/internal/parse"
	"github.com/phobologic/chunkplan/internal/resolve"
)

type scanLoader struct {
	opts Options
}

type parserPair struct {
	parser *sitter.Parser
	query  *sitter.Query
}

func newParserPair(language string) (*parserPair, error) {
	l, ok := lang.Languages[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}
	q, err := l.GetImportQuery()
	if err != nil {
		return nil, err
	}
	return &parserPair{parser: l.NewParser(), query: q}, nil
}

func (s *scanLoader) Load(ctx context.Context) (*Result, error) {
	log := s.opts.Logger
	root := s.opts.Root

	found, err := discover.Files(root, discover.Options{
		Ignore:      s.opts.Ignore,
		MaxFileSize: s.opts.MaxFileSize,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	var files, scripts []discover.FileEntry
	for _, f := range found {
		if discover.IsTestFile(f.Path) {
			continue
		}
		files = append(files, f)
		if f.Kind == discover.Script {
			scripts = append(scripts, f)
		}
	}
	log.Debug("discovered files", zap.Int("files", len(files)), zap.Int("scripts", len(scripts)))

	imports, err := s.parseConcurrent(ctx, scripts)
	if err != nil {
		return nil, err
	}

	b := &builder{
		opts:     s.opts,
		g:        graph.New(),
		resolver: resolve.New(root),
		imports:  imports,
		log:      log,
	}
	if err := b.linkEntries(); err != nil {
		return nil, err
	}
	b.linkModules()

	return &Result{Graph: b.g, Files: files}, nil
}

// parseConcurrent extracts the imports of every script with a bounded pool
// of workers, each owning one parser per language. Unreadable files are logged
// and skipped.
func (s *scanLoader) parseConcurrent(ctx context.Context, files []discover.FileEntry) (map[string][]parse.Import, error) {
	out := make(map[string][]parse.Import, len(files))
	if len(files) == 0 {
		return out, nil
	}

	numWorkers := s.opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	type result struct {
		path    string
		imports []parse.Import
	}

	work := make(chan discover.FileEntry, len(files))
	results := make(chan result, len(files))

	s.opts.Progress.Start(len(files))
	defer s.opts.Progress.Finish()

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			parsers := make(map[string]*parserPair)
			for f := range work {
				if ctx.Err() != nil {
					continue
				}
				imports, err := s.parseFile(f, parsers)
				s.opts.Progress.Advance()
				if err != nil {
					s.opts.Logger.Warn("skipping file", zap.String("file", f.Path), zap.Error(err))
					continue
				}
				results <- result{path: f.Path, imports: imports}
			}
		}()
	}

	for _, f := range files {
		work <- f
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		out[r.path] = r.imports
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *scanLoader) parseFile(f discover.FileEntry, parsers map[string]*parserPair) ([]parse.Import, error) {
	abs := filepath.Join(s.opts.Root, filepath.FromSlash(f.Path))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.opts.Cache.Get(abs, info); ok {
		return cached, nil
	}

	pp, ok := parsers[f.Language]
	if !ok {
		pp, err = newParserPair(f.Language)
		if err != nil {
			return nil, err
		}
		parsers[f.Language] = pp
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	imports := parse.ExtractImports(pp.parser, pp.query, source)
	s.opts.Cache.Add(abs, info, imports)
	return imports, nil
}

// builder links parsed files into the import graph in the order the bundler
// would discover them: entry documents first, then breadth-first through
// their imports.
type builder struct {
	opts     Options
	g        *graph.ImportGraph
	resolver *resolve.Resolver
	imports  map[string][]parse.Import
	log      *zap.Logger

	queue []string
}

func (b *builder) linkEntries() error {
	for _, e := range b.opts.Entries {
		b.g.AddEntry(e.ID())
	}

	docs, err := newDocumentReader(b.opts)
	if err != nil {
		return err
	}
	for _, e := range b.opts.Entries {
		data, err := os.ReadFile(filepath.Join(b.opts.Root, filepath.FromSlash(e.Path)))
		if err != nil {
			b.log.Warn("entry document unreadable, skipping", zap.String("entry", e.Name), zap.Error(err))
			continue
		}
		imports, err := docs.imports(e, bytes.NewReader(data))
		if err != nil {
			b.log.Warn("entry document unparseable, skipping", zap.String("entry", e.Name), zap.Error(err))
			continue
		}
		for _, imp := range imports {
			b.link(e.ID(), imp)
		}
	}
	return nil
}

func (b *builder) linkModules() {
	for len(b.queue) > 0 {
		id := b.queue[0]
		b.queue = b.queue[1:]
		for _, imp := range b.imports[model.RelPath(id)] {
			b.link(id, imp)
		}
	}
}

// link resolves imp from importer and records the edge. Newly seen modules
// are queued for their own imports.
func (b *builder) link(importer string, imp parse.Import) {
	id, err := b.resolver.Resolve(importer, imp.Specifier)
	if err != nil {
		if errors.Is(err, resolve.ErrExternal) {
			b.log.Debug("external import", zap.String("importer", importer), zap.String("specifier", imp.Specifier))
		} else {
			b.log.Warn("unresolved import",
				zap.String("importer", importer),
				zap.String("specifier", imp.Specifier),
				zap.String("kind", string(imp.Kind)),
				zap.Int("line", imp.Line),
				zap.Error(err))
		}
		return
	}
	seen := b.g.Has(id)
	if err := b.g.AddImport(importer, id); err != nil {
		b.log.Warn("import edge", zap.String("importer", importer), zap.String("module", id), zap.Error(err))
		return
	}
	if !seen {
		b.queue = append(b.queue, id)
	}
}
