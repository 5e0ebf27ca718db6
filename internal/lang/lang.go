// Package lang registers the tree-sitter grammars used to find imports in
// script modules, keyed by name and by file extension.
package lang

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Language is one grammar plus its import query.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	queryOnce sync.Once
	query     *sitter.Query
	queryErr  error
}

// GetLanguage returns the tree-sitter grammar.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a parser for this grammar. Parsers are not safe for
// concurrent use; each worker owns its own.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// GetImportQuery compiles queries/<name>.scm once. The compiled query is safe
// to share across goroutines.
func (l *Language) GetImportQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile("queries/" + l.Name + ".scm")
		if err != nil {
			l.queryErr = fmt.Errorf("reading import query for %s: %w", l.Name, err)
			return
		}
		l.query, l.queryErr = sitter.NewQuery(data, l.lang)
		if l.queryErr != nil {
			l.queryErr = fmt.Errorf("compiling import query for %s: %w", l.Name, l.queryErr)
		}
	})
	return l.query, l.queryErr
}

// Languages maps language names to their configuration. It is filled by the
// init functions of the per-grammar files and read-only afterwards.
var Languages = map[string]*Language{}

var byExtension = map[string]string{}

func register(l *Language) {
	Languages[l.Name] = l
	for _, ext := range l.Extensions {
		byExtension[ext] = l.Name
	}
}

// ForExtension returns the language name for a file extension such as ".tsx",
// or "" if no grammar handles it. Matching ignores case.
func ForExtension(ext string) string {
	return byExtension[strings.ToLower(ext)]
}

// ForPath returns the language name for a slash-separated file path.
func ForPath(p string) string {
	return ForExtension(path.Ext(p))
}

// Extensions returns every registered script extension, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
