// Package parse extracts import specifiers from source files using tree-sitter
// and entry scripts from HTML documents.
package parse

import (
	"context"
	"io"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ImportKind describes how a module was referenced.
type ImportKind string

const (
	Static  ImportKind = "static"
	Dynamic ImportKind = "dynamic"
	Require ImportKind = "require"
)

// Import is a single module reference found in a source file.
type Import struct {
	Specifier string
	Kind      ImportKind
	Line      int
}

var captureKinds = map[string]ImportKind{
	"import":         Static,
	"import.dynamic": Dynamic,
	"import.require": Require,
}

// ExtractImports parses a source file and returns its import specifiers in
// source order. A specifier imported several times is reported once, with the
// kind of its first occurrence. Type-only imports are skipped since bundlers
// erase them.
func ExtractImports(parser *sitter.Parser, query *sitter.Query, source []byte) []Import {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	seen := make(map[string]struct{})
	var imports []Import

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var sourceNode, requireNode, outerNode *sitter.Node
		var kind ImportKind

		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			switch cname {
			case "import.source":
				sourceNode = c.Node
			case "require.name":
				requireNode = c.Node
			default:
				if k, ok := captureKinds[cname]; ok {
					kind = k
					outerNode = c.Node
				}
			}
		}

		if sourceNode == nil || kind == "" {
			continue
		}
		if kind == Require && (requireNode == nil || nodeText(requireNode, source) != "require") {
			continue
		}
		if kind == Static && isTypeOnly(outerNode) {
			continue
		}

		spec := unquote(nodeText(sourceNode, source))
		if spec == "" {
			continue
		}
		if _, dup := seen[spec]; dup {
			continue
		}
		seen[spec] = struct{}{}

		imports = append(imports, Import{
			Specifier: spec,
			Kind:      kind,
			Line:      int(sourceNode.StartPoint().Row) + 1,
		})
	}

	return imports
}

// isTypeOnly reports whether an import/export statement is `import type` or
// `export type`.
func isTypeOnly(stmt *sitter.Node) bool {
	if stmt == nil || stmt.ChildCount() < 2 {
		return false
	}
	return stmt.Child(1).Type() == "type"
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// DocumentScripts returns the external script URLs and the bodies of inline
// module scripts of an HTML document, both in document order.
func DocumentScripts(r io.Reader) (external, inline []string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			if src := attr(n, "src"); src != "" {
				external = append(external, src)
			} else if strings.EqualFold(attr(n, "type"), "module") && n.FirstChild != nil {
				if body := strings.TrimSpace(n.FirstChild.Data); body != "" {
					inline = append(inline, body)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return external, inline, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
