// Package config loads chunkplan settings from defaults, a YAML file and the
// environment.
package config

import (
	"fmt"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/chunkplan/internal/classify"
	"github.com/phobologic/chunkplan/internal/htmlstrip"
	"github.com/phobologic/chunkplan/internal/model"
	"github.com/phobologic/chunkplan/internal/naming"
	"github.com/phobologic/chunkplan/internal/postprocess"
	"github.com/phobologic/chunkplan/internal/reach"
)

// Config is the complete chunkplan configuration.
type Config struct {
	Base             string           `yaml:"base" mapstructure:"base"`         // Public base path of the site
	OutDir           string           `yaml:"out_dir" mapstructure:"out_dir"`   // Bundler output directory, relative to the root
	Entries          []model.Entry    `yaml:"entries" mapstructure:"entries"`   // Named entry documents
	API              APIConfig        `yaml:"api" mapstructure:"api"`
	Membership       MembershipConfig `yaml:"membership" mapstructure:"membership"`
	Rules            []classify.Rule  `yaml:"rules" mapstructure:"rules"`
	DependencyMarker string           `yaml:"dependency_marker" mapstructure:"dependency_marker"`
	Output           OutputConfig     `yaml:"output" mapstructure:"output"`
	Strip            StripConfig      `yaml:"strip" mapstructure:"strip"`
	Source           SourceConfig     `yaml:"source" mapstructure:"source"`
	Server           ServerConfig     `yaml:"server" mapstructure:"server"`
	Test             TestConfig       `yaml:"test" mapstructure:"test"`

	// File is the config file that was read, if any.
	File string `yaml:"-" mapstructure:"-"`
}

// APIConfig describes the API-only pages.
type APIConfig struct {
	Entries     []string `yaml:"entries" mapstructure:"entries"`           // Entry names served without the UI framework
	Dir         string   `yaml:"dir" mapstructure:"dir"`                   // Output directory for API entries and documents
	GroupPrefix string   `yaml:"group_prefix" mapstructure:"group_prefix"` // Prefix of groups API pages may load
	Stub        []string `yaml:"stub" mapstructure:"stub"`                 // Packages never linked from API documents
}

// MembershipConfig selects how API modules are found.
type MembershipConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
	Shared   string `yaml:"shared" mapstructure:"shared"`
}

// OutputConfig holds the output file name templates.
type OutputConfig struct {
	Entry      string `yaml:"entry" mapstructure:"entry"`
	Chunk      string `yaml:"chunk" mapstructure:"chunk"`
	Asset      string `yaml:"asset" mapstructure:"asset"`
	APIAsset   string `yaml:"api_asset" mapstructure:"api_asset"`
	HashLength int    `yaml:"hash_length" mapstructure:"hash_length"`
	AssetDir   string `yaml:"asset_dir" mapstructure:"asset_dir"`
}

// StripConfig configures HTML post-processing.
type StripConfig struct {
	Pages   []string `yaml:"pages" mapstructure:"pages"`     // Globs over output paths
	Markers []string `yaml:"markers" mapstructure:"markers"` // Framework URL substrings
}

// SourceConfig selects where the import graph comes from.
type SourceConfig struct {
	Kind        string   `yaml:"kind" mapstructure:"kind"`                   // "scan" or "esbuild"
	Ignore      []string `yaml:"ignore" mapstructure:"ignore"`               // Globs skipped during scanning
	MaxFileSize int64    `yaml:"max_file_size" mapstructure:"max_file_size"` // Bytes; 0 means unlimited
	Workers     int      `yaml:"workers" mapstructure:"workers"`             // Parser pool size; 0 means NumCPU
}

// ServerConfig is passed through to the dev server.
type ServerConfig struct {
	Open bool `yaml:"open" mapstructure:"open"`
}

// TestConfig is passed through to the test runner.
type TestConfig struct {
	Globals     bool     `yaml:"globals" mapstructure:"globals"`
	Environment string   `yaml:"environment" mapstructure:"environment"`
	Exclude     []string `yaml:"exclude" mapstructure:"exclude"`
}

// Source kinds.
const (
	SourceScan    = "scan"
	SourceEsbuild = "esbuild"
)

// Default returns the configuration of the companion tool site.
func Default() *Config {
	return &Config{
		Base:   "/pokesleep-tool/",
		OutDir: "dist",
		Entries: []model.Entry{
			{Name: "reserchEn", Path: "index.html"},
			{Name: "reserchJa", Path: "index.ja.html"},
			{Name: "reserchKo", Path: "index.ko.html"},
			{Name: "reserchZhCn", Path: "index.zh-cn.html"},
			{Name: "reserchZhTw", Path: "index.zh-tw.html"},
			{Name: "ivEn", Path: "iv/index.html"},
			{Name: "ivJa", Path: "iv/index.ja.html"},
			{Name: "ivKo", Path: "iv/index.ko.html"},
			{Name: "ivZhCn", Path: "iv/index.zh-cn.html"},
			{Name: "ivZhTw", Path: "iv/index.zh-tw.html"},
			{Name: "apiSerialize", Path: "api/serialize.html"},
			{Name: "apiDeserialize", Path: "api/deserialize.html"},
			{Name: "apiStrength", Path: "api/strength.html"},
		},
		API: APIConfig{
			Entries:     []string{"apiSerialize", "apiDeserialize", "apiStrength"},
			Dir:         naming.DefaultAPIDir,
			GroupPrefix: "api-",
			Stub:        []string{"react", "react-dom", "react-i18next"},
		},
		Membership: MembershipConfig{
			Strategy: string(reach.Reachability),
			Shared:   string(reach.SharedAPI),
		},
		Rules:            classify.DefaultRules(),
		DependencyMarker: classify.DefaultDependencyMarker,
		Output: OutputConfig{
			Entry:      naming.DefaultEntryTemplate,
			Chunk:      naming.DefaultChunkTemplate,
			Asset:      naming.DefaultAssetTemplate,
			APIAsset:   naming.DefaultAPIAssetTemplate,
			HashLength: naming.DefaultHashLength,
			AssetDir:   naming.DefaultAssetDir,
		},
		Strip: StripConfig{
			Pages:   append([]string(nil), postprocess.DefaultPages...),
			Markers: append([]string(nil), htmlstrip.DefaultMarkers...),
		},
		Source: SourceConfig{
			Kind: SourceScan,
			Ignore: []string{
				"**/*.test.ts",
				"**/*.test.tsx",
				"**/__tests__/**",
			},
			MaxFileSize: 2 << 20,
		},
		Server: ServerConfig{Open: true},
		Test: TestConfig{
			Globals:     true,
			Environment: "jsdom",
			Exclude:     []string{"**/node_modules/**", "**/dist/**"},
		},
	}
}

// APIEntries returns the entries served without the UI framework. When no
// names are configured, entries are selected by name and path.
func (c *Config) APIEntries() []model.Entry {
	var out []model.Entry
	for _, e := range c.Entries {
		if c.isAPIEntry(e) {
			out = append(out, e)
		}
	}
	return out
}

// UIEntries returns the remaining entries.
func (c *Config) UIEntries() []model.Entry {
	var out []model.Entry
	for _, e := range c.Entries {
		if !c.isAPIEntry(e) {
			out = append(out, e)
		}
	}
	return out
}

func (c *Config) isAPIEntry(e model.Entry) bool {
	if len(c.API.Entries) == 0 {
		return e.IsAPI()
	}
	for _, name := range c.API.Entries {
		if name == e.Name {
			return true
		}
	}
	return false
}

// APIDocuments returns the basenames of the API entry documents.
func (c *Config) APIDocuments() []string {
	var docs []string
	for _, e := range c.APIEntries() {
		docs = append(docs, path.Base(e.Path))
	}
	return docs
}

// APIPages returns the output paths of the API entry documents.
func (c *Config) APIPages() []string {
	var pages []string
	for _, e := range c.APIEntries() {
		pages = append(pages, path.Join(c.API.Dir, path.Base(e.Path)))
	}
	return pages
}

// Namer builds the output file namer.
func (c *Config) Namer() (*naming.Namer, error) {
	return naming.New(naming.Options{
		Templates: naming.Templates{
			Entry:    c.Output.Entry,
			Chunk:    c.Output.Chunk,
			Asset:    c.Output.Asset,
			APIAsset: c.Output.APIAsset,
		},
		HashLength:   c.Output.HashLength,
		APIDir:       c.API.Dir,
		AssetDir:     c.Output.AssetDir,
		APIDocuments: c.APIDocuments(),
	})
}

// Classifier builds the classifier for the configured rule table.
func (c *Config) Classifier(opts ...classify.Option) *classify.Classifier {
	opts = append([]classify.Option{classify.WithDependencyMarker(c.DependencyMarker)}, opts...)
	return classify.New(c.Rules, opts...)
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
