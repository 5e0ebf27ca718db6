// Package htmlstrip removes framework script and preload references from
// emitted HTML documents.
package htmlstrip

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMarkers are URL substrings that identify framework chunks when no
// bundle description is available.
var DefaultMarkers = []string{"react", "vendor"}

// Rewriter decides which references to drop. The zero value removes nothing.
type Rewriter struct {
	// Markers match script URLs case-insensitively.
	Markers []string
	// Excluded holds output file names ("assets/react-1a2b3c4d.js") that are
	// always removed.
	Excluded map[string]struct{}
	// Keep holds output file names that marker matching must never remove,
	// such as the api-vendor chunk.
	Keep map[string]struct{}
}

// New returns a Rewriter. Markers are lowercased.
func New(markers, excluded, keep []string) *Rewriter {
	r := &Rewriter{
		Excluded: make(map[string]struct{}, len(excluded)),
		Keep:     make(map[string]struct{}, len(keep)),
	}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			r.Markers = append(r.Markers, m)
		}
	}
	for _, f := range excluded {
		r.Excluded[f] = struct{}{}
	}
	for _, f := range keep {
		r.Keep[f] = struct{}{}
	}
	return r
}

// Strip returns src without the matching <script src> and <link href>
// elements, and the URLs it removed. When nothing matches, src is returned
// unchanged, so applying Strip twice equals applying it once.
func (r *Rewriter) Strip(src string) (string, []string, error) {
	if isDocument(src) {
		doc, err := html.Parse(strings.NewReader(src))
		if err != nil {
			return "", nil, fmt.Errorf("parse html: %w", err)
		}
		removed := r.prune(doc)
		if len(removed) == 0 {
			return src, nil, nil
		}
		var buf bytes.Buffer
		if err := html.Render(&buf, doc); err != nil {
			return "", nil, fmt.Errorf("render html: %w", err)
		}
		return buf.String(), removed, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return "", nil, fmt.Errorf("parse html fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	removed := r.prune(body)
	if len(removed) == 0 {
		return src, nil, nil
	}
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", nil, fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), removed, nil
}

// prune removes matching elements below n, together with a whitespace-only
// text node that directly follows each one.
func (r *Rewriter) prune(n *html.Node) []string {
	var removed []string
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.ElementNode {
			c = next
			continue
		}
		if url, ok := r.match(c); ok {
			if next != nil && next.Type == html.TextNode && strings.TrimSpace(next.Data) == "" {
				after := next.NextSibling
				n.RemoveChild(next)
				next = after
			}
			n.RemoveChild(c)
			removed = append(removed, url)
			c = next
			continue
		}
		removed = append(removed, r.prune(c)...)
		c = next
	}
	return removed
}

func (r *Rewriter) match(n *html.Node) (string, bool) {
	var url string
	switch n.DataAtom {
	case atom.Script:
		url = attr(n, "src")
	case atom.Link:
		url = attr(n, "href")
	default:
		return "", false
	}
	if url == "" {
		return "", false
	}
	return url, r.Matches(url)
}

// Matches reports whether a referenced URL should be removed.
func (r *Rewriter) Matches(url string) bool {
	clean := trimURL(url)
	if references(clean, r.Excluded) {
		return true
	}
	if references(clean, r.Keep) || !strings.HasSuffix(clean, ".js") {
		return false
	}
	lower := strings.ToLower(clean)
	for _, m := range r.Markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// references reports whether url points at one of files, allowing any base
// path or relative prefix in front of the file name.
func references(url string, files map[string]struct{}) bool {
	if len(files) == 0 {
		return false
	}
	if _, ok := files[strings.TrimPrefix(url, "/")]; ok {
		return true
	}
	for i := 0; i < len(url); i++ {
		if url[i] != '/' {
			continue
		}
		if _, ok := files[url[i+1:]]; ok {
			return true
		}
	}
	return false
}

func trimURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return url
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func isDocument(src string) bool {
	head := strings.ToLower(strings.TrimSpace(src))
	for _, prefix := range []string{"<!doctype", "<html", "<head"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return false
}
