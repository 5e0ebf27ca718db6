package source

import (
	"io"

	"go.uber.org/zap"

	"github.com/phobologic/chunkplan/internal/model"
	"github.com/phobologic/chunkplan/internal/parse"
)

// documentReader lists the modules an entry document loads. It is shared by
// both loaders so the scan and esbuild graphs agree on entry edges.
type documentReader struct {
	opts   Options
	inline *parserPair
	log    *zap.Logger
}

func newDocumentReader(opts Options) (*documentReader, error) {
	pp, err := newParserPair("javascript")
	if err != nil {
		return nil, err
	}
	return &documentReader{opts: opts, inline: pp, log: opts.Logger}, nil
}

// imports returns the external module scripts of e's document followed by the
// imports of its inline module scripts, in document order. Stub packages are
// dropped for API entries.
func (d *documentReader) imports(e model.Entry, r io.Reader) ([]parse.Import, error) {
	external, bodies, err := parse.DocumentScripts(r)
	if err != nil {
		return nil, err
	}

	out := make([]parse.Import, 0, len(external))
	for _, src := range external {
		out = append(out, parse.Import{Specifier: documentSpecifier(src), Kind: parse.Static})
	}

	api := d.opts.isAPIEntry(e.Name)
	for _, body := range bodies {
		for _, imp := range parse.ExtractImports(d.inline.parser, d.inline.query, []byte(body)) {
			if api && d.opts.stubbed(imp.Specifier) {
				d.log.Debug("stubbed framework import",
					zap.String("entry", e.Name),
					zap.String("specifier", imp.Specifier))
				continue
			}
			out = append(out, imp)
		}
	}
	return out, nil
}
