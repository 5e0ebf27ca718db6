// Package naming computes output file names for emitted entries, chunks and
// assets.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Default templates. Directories are prepended separately.
const (
	DefaultEntryTemplate    = "[name]-[hash].js"
	DefaultChunkTemplate    = "[name]-[hash].js"
	DefaultAssetTemplate    = "[name]-[hash][extname]"
	DefaultAPIAssetTemplate = "[name][extname]"
	DefaultHashLength       = 8
	DefaultAPIDir           = "api"
	DefaultAssetDir         = "assets"
)

var placeholder = regexp.MustCompile(`\[[^\]]*\]`)

var known = map[string]struct{}{
	"[name]":    {},
	"[hash]":    {},
	"[ext]":     {},
	"[extname]": {},
}

// Templates holds the file name patterns. Placeholders: [name], [hash],
// [ext] (extension without dot) and [extname] (with dot).
type Templates struct {
	Entry    string `mapstructure:"entry" yaml:"entry"`
	Chunk    string `mapstructure:"chunk" yaml:"chunk"`
	Asset    string `mapstructure:"asset" yaml:"asset"`
	APIAsset string `mapstructure:"api_asset" yaml:"api_asset"`
}

// Validate reports the first template with an unknown placeholder.
func (t Templates) Validate() error {
	for field, tmpl := range map[string]string{
		"entry":     t.Entry,
		"chunk":     t.Chunk,
		"asset":     t.Asset,
		"api_asset": t.APIAsset,
	} {
		if err := ValidateTemplate(tmpl); err != nil {
			return fmt.Errorf("%s template: %w", field, err)
		}
	}
	return nil
}

// ValidateTemplate checks a single template.
func ValidateTemplate(tmpl string) error {
	if tmpl == "" {
		return fmt.Errorf("empty template")
	}
	for _, p := range placeholder.FindAllString(tmpl, -1) {
		if _, ok := known[p]; !ok {
			return fmt.Errorf("unknown placeholder %s in %q", p, tmpl)
		}
	}
	return nil
}

// Options configures a Namer. Zero values select the defaults.
type Options struct {
	Templates  Templates
	HashLength int
	APIDir     string
	AssetDir   string
	// APIDocuments are the basenames of the API entry documents
	// ("strength.html"). Assets whose name contains one go to APIDir unhashed.
	APIDocuments []string
}

// Namer computes output file names.
type Namer struct {
	opts Options
}

// New returns a Namer, filling defaults.
func New(opts Options) (*Namer, error) {
	if opts.Templates.Entry == "" {
		opts.Templates.Entry = DefaultEntryTemplate
	}
	if opts.Templates.Chunk == "" {
		opts.Templates.Chunk = DefaultChunkTemplate
	}
	if opts.Templates.Asset == "" {
		opts.Templates.Asset = DefaultAssetTemplate
	}
	if opts.Templates.APIAsset == "" {
		opts.Templates.APIAsset = DefaultAPIAssetTemplate
	}
	if opts.HashLength <= 0 {
		opts.HashLength = DefaultHashLength
	}
	if opts.APIDir == "" {
		opts.APIDir = DefaultAPIDir
	}
	if opts.AssetDir == "" {
		opts.AssetDir = DefaultAssetDir
	}
	if err := opts.Templates.Validate(); err != nil {
		return nil, err
	}
	return &Namer{opts: opts}, nil
}

// IsAPIEntry reports whether an entry chunk belongs in the API directory.
func IsAPIEntry(name, facadeID string) bool {
	return strings.HasPrefix(name, "api") || strings.Contains(facadeID, "/api/")
}

// Entry returns the file name for an entry chunk.
func (n *Namer) Entry(name, facadeID string, content []byte) string {
	dir := n.opts.AssetDir
	if IsAPIEntry(name, facadeID) {
		dir = n.opts.APIDir
	}
	return path.Join(dir, Render(n.opts.Templates.Entry, name, ".js", Hash(content, n.opts.HashLength)))
}

// Chunk returns the file name for a shared chunk such as "react" or "api-util".
func (n *Namer) Chunk(name string, content []byte) string {
	return path.Join(n.opts.AssetDir, Render(n.opts.Templates.Chunk, name, ".js", Hash(content, n.opts.HashLength)))
}

// Asset returns the file name for an emitted asset. API entry documents keep
// their name so the pages stay at stable URLs.
func (n *Namer) Asset(name string, content []byte) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(path.Base(name), ext)
	hash := Hash(content, n.opts.HashLength)
	if n.IsAPIAsset(name) {
		return path.Join(n.opts.APIDir, Render(n.opts.Templates.APIAsset, base, ext, hash))
	}
	return path.Join(n.opts.AssetDir, Render(n.opts.Templates.Asset, base, ext, hash))
}

// IsAPIAsset reports whether the asset name contains an API document basename.
func (n *Namer) IsAPIAsset(name string) bool {
	for _, doc := range n.opts.APIDocuments {
		if doc != "" && strings.Contains(name, doc) {
			return true
		}
	}
	return false
}

// Render substitutes placeholders in tmpl. ext includes the leading dot.
func Render(tmpl, name, ext, hash string) string {
	r := strings.NewReplacer(
		"[name]", name,
		"[hash]", hash,
		"[extname]", ext,
		"[ext]", strings.TrimPrefix(ext, "."),
	)
	return r.Replace(tmpl)
}

// Hash returns the lowercase hex sha256 of content truncated to length.
func Hash(content []byte, length int) string {
	sum := sha256.Sum256(content)
	h := hex.EncodeToString(sum[:])
	if length > 0 && length < len(h) {
		return h[:length]
	}
	return h
}
