// Package resolve implements a node-style module resolution algorithm that
// maps import specifiers to root-anchored module identifiers.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/phobologic/chunkplan/internal/model"
)

var (
	// ErrExternal is returned for specifiers that never enter the module
	// graph: node builtins, remote URLs and data URIs.
	ErrExternal = errors.New("resolve: external module")
	// ErrNotFound is returned when a relative or absolute specifier names no file.
	ErrNotFound = errors.New("resolve: module not found")
)

// DefaultExtensions is the probe order for extensionless specifiers.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".json"}

// Resolver resolves specifiers relative to a project root.
// It is not safe for concurrent use.
type Resolver struct {
	Root       string
	Extensions []string

	stats map[string]bool
}

// New returns a Resolver for root using DefaultExtensions.
func New(root string) *Resolver {
	return &Resolver{Root: root, Extensions: DefaultExtensions}
}

// Resolve returns the module identifier that specifier refers to when imported
// from the module importer. A query suffix on the specifier is preserved on the
// returned identifier.
//
// Bare specifiers resolve into node_modules. When the package is not
// installed, a virtual identifier "/node_modules/<specifier>" is returned so the
// module still carries the dependency marker.
func (r *Resolver) Resolve(importer, specifier string) (string, error) {
	spec, query := splitQuery(specifier)
	if spec == "" {
		return "", fmt.Errorf("%w: empty specifier", ErrNotFound)
	}

	switch {
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"),
		strings.HasPrefix(spec, "//"), strings.HasPrefix(spec, "data:"):
		return "", fmt.Errorf("%w: %s", ErrExternal, specifier)

	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"), spec == ".", spec == "..":
		dir := path.Dir(model.RelPath(importer))
		rel := path.Clean(path.Join(dir, spec))
		if strings.HasPrefix(rel, "../") || rel == ".." {
			return "", fmt.Errorf("%w: %s escapes project root", ErrNotFound, specifier)
		}
		found, ok := r.probe(rel)
		if !ok {
			return "", fmt.Errorf("%w: %s from %s", ErrNotFound, specifier, importer)
		}
		return model.ModuleID(found) + query, nil

	case strings.HasPrefix(spec, "/"):
		rel := strings.TrimPrefix(path.Clean(spec), "/")
		found, ok := r.probe(rel)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrNotFound, specifier)
		}
		return model.ModuleID(found) + query, nil
	}

	if isNodeBuiltin(spec) {
		return "", fmt.Errorf("%w: %s", ErrExternal, specifier)
	}
	return model.ModuleID(r.resolvePackage(spec)) + query, nil
}

// resolvePackage resolves a bare specifier like "react", "react-dom/client" or
// "@mui/material/Button".
func (r *Resolver) resolvePackage(spec string) string {
	pkg, sub := splitPackage(spec)
	pkgDir := path.Join("node_modules", pkg)

	if !r.isDir(pkgDir) {
		return path.Join("node_modules", spec)
	}

	if sub != "" {
		if found, ok := r.probe(path.Join(pkgDir, sub)); ok {
			return found
		}
		return path.Join("node_modules", spec)
	}

	if entry := r.packageEntry(pkgDir); entry != "" {
		if found, ok := r.probe(path.Join(pkgDir, entry)); ok {
			return found
		}
	}
	if found, ok := r.probe(path.Join(pkgDir, "index")); ok {
		return found
	}
	return pkgDir
}

// packageEntry reads the browser-relevant entry field from package.json.
func (r *Resolver) packageEntry(pkgDir string) string {
	data, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(pkgDir), "package.json"))
	if err != nil {
		return ""
	}
	var m struct {
		Module string `json:"module"`
		Main   string `json:"main"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	if m.Module != "" {
		return m.Module
	}
	return m.Main
}

// probe finds the file a root-relative path refers to: the exact file, the path
// with one of the known extensions, or an index file in the directory.
func (r *Resolver) probe(rel string) (string, bool) {
	if r.isFile(rel) {
		return rel, true
	}
	for _, ext := range r.Extensions {
		if r.isFile(rel + ext) {
			return rel + ext, true
		}
	}
	if r.isDir(rel) {
		for _, ext := range r.Extensions {
			candidate := path.Join(rel, "index"+ext)
			if r.isFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Resolver) isFile(rel string) bool {
	return r.stat(rel, false)
}

func (r *Resolver) isDir(rel string) bool {
	return r.stat(rel, true)
}

func (r *Resolver) stat(rel string, dir bool) bool {
	if r.stats == nil {
		r.stats = make(map[string]bool)
	}
	key := rel
	if dir {
		key += "/"
	}
	if v, ok := r.stats[key]; ok {
		return v
	}
	fi, err := os.Stat(filepath.Join(r.Root, filepath.FromSlash(rel)))
	v := err == nil && fi.IsDir() == dir
	r.stats[key] = v
	return v
}

func splitQuery(spec string) (string, string) {
	if i := strings.IndexByte(spec, '?'); i >= 0 {
		return spec[:i], spec[i:]
	}
	return spec, ""
}

// splitPackage separates the package name from the subpath of a bare specifier.
func splitPackage(spec string) (pkg, sub string) {
	parts := strings.SplitN(spec, "/", 3)
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		pkg = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			sub = parts[2]
		}
		return pkg, sub
	}
	pkg = parts[0]
	if len(parts) > 1 {
		sub = strings.Join(parts[1:], "/")
	}
	return pkg, sub
}
