package postprocess

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/phobologic/chunkplan/internal/model"
	"github.com/phobologic/chunkplan/internal/naming"
)

// ManifestPath is where the bundler writes its manifest, relative to the
// output directory.
const ManifestPath = ".vite/manifest.json"

// ManifestChunk is one record of the bundler manifest.
type ManifestChunk struct {
	File           string   `json:"file"`
	Name           string   `json:"name,omitempty"`
	Src            string   `json:"src,omitempty"`
	IsEntry        bool     `json:"isEntry,omitempty"`
	IsDynamicEntry bool     `json:"isDynamicEntry,omitempty"`
	Imports        []string `json:"imports,omitempty"`
	DynamicImports []string `json:"dynamicImports,omitempty"`
	CSS            []string `json:"css,omitempty"`
	Assets         []string `json:"assets,omitempty"`
}

// Manifest maps source keys to emitted chunks.
type Manifest map[string]ManifestChunk

// LoadManifest reads the manifest below dir. A missing manifest yields nil
// without error.
func LoadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ManifestPath)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// Describe walks the output directory and builds the bundle description.
// Names come from the manifest when it lists the file, otherwise they are
// derived from the file name by dropping the extension and the hash suffix.
func Describe(dir string, m Manifest) (model.Bundle, error) {
	byFile := make(map[string]ManifestChunk, len(m))
	for _, c := range m {
		byFile[c.File] = c
	}

	bundle := make(model.Bundle)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == ".vite" {
				return filepath.SkipDir
			}
			return nil
		}

		out := model.OutputFile{FileName: rel, Type: model.Asset}
		if ext := path.Ext(rel); ext == ".js" || ext == ".mjs" {
			out.Type = model.Chunk
		}
		if c, ok := byFile[rel]; ok && c.Name != "" {
			out.Name = c.Name
			out.IsEntry = c.IsEntry
		} else {
			out.Name = deriveName(rel)
		}
		bundle[rel] = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return bundle, nil
}

// deriveName turns "assets/api-util-1a2b3c4d.js" into "api-util".
// Rollup hashes are base64url and may contain '-' themselves, so a suffix of
// the known hash length is tried before the last separator.
func deriveName(file string) string {
	base := path.Base(file)
	base = strings.TrimSuffix(base, path.Ext(base))
	if n := naming.DefaultHashLength; len(base) > n+1 && base[len(base)-n-1] == '-' && looksLikeHash(base[len(base)-n:]) {
		return base[:len(base)-n-1]
	}
	i := strings.LastIndexByte(base, '-')
	if i <= 0 || !looksLikeHash(base[i+1:]) {
		return base
	}
	return base[:i]
}

func looksLikeHash(s string) bool {
	if len(s) < 6 {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
		default:
			return false
		}
	}
	return digits > 0 || strings.ToLower(s) != s
}
