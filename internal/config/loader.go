package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides (CHUNKPLAN_MEMBERSHIP_STRATEGY).
const EnvPrefix = "CHUNKPLAN"

// Candidate config files, relative to the project root, in lookup order.
var configFiles = []string{
	"chunkplan.yaml",
	"chunkplan.yml",
	filepath.Join(".chunkplan", "config.yaml"),
	filepath.Join(".chunkplan", "config.yml"),
}

// Loader loads configuration for a project root.
type Loader struct {
	rootDir    string
	configFile string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigFile reads path instead of searching the project root.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) { l.configFile = path }
}

// NewLoader creates a configuration loader for rootDir.
func NewLoader(rootDir string, opts ...LoaderOption) *Loader {
	l := &Loader{rootDir: rootDir}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves configuration with the following priority (highest first):
//  1. Environment variables (CHUNKPLAN_*), including those from <root>/.env
//  2. Config file
//  3. Default values
func (l *Loader) Load() (*Config, error) {
	if err := godotenv.Load(filepath.Join(l.rootDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"base",
		"out_dir",
		"api.dir",
		"api.group_prefix",
		"api.entries",
		"membership.strategy",
		"membership.shared",
		"dependency_marker",
		"output.hash_length",
		"output.asset_dir",
		"strip.pages",
		"strip.markers",
		"source.kind",
		"source.ignore",
		"source.max_file_size",
		"source.workers",
		"server.open",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	file, err := l.findConfigFile()
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = file

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) findConfigFile() (string, error) {
	if l.configFile != "" {
		if _, err := os.Stat(l.configFile); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return l.configFile, nil
	}
	for _, name := range configFiles {
		p := filepath.Join(l.rootDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("base", d.Base)
	v.SetDefault("out_dir", d.OutDir)
	v.SetDefault("entries", d.Entries)

	v.SetDefault("api.entries", d.API.Entries)
	v.SetDefault("api.dir", d.API.Dir)
	v.SetDefault("api.group_prefix", d.API.GroupPrefix)
	v.SetDefault("api.stub", d.API.Stub)

	v.SetDefault("membership.strategy", d.Membership.Strategy)
	v.SetDefault("membership.shared", d.Membership.Shared)

	v.SetDefault("rules", d.Rules)
	v.SetDefault("dependency_marker", d.DependencyMarker)

	v.SetDefault("output.entry", d.Output.Entry)
	v.SetDefault("output.chunk", d.Output.Chunk)
	v.SetDefault("output.asset", d.Output.Asset)
	v.SetDefault("output.api_asset", d.Output.APIAsset)
	v.SetDefault("output.hash_length", d.Output.HashLength)
	v.SetDefault("output.asset_dir", d.Output.AssetDir)

	v.SetDefault("strip.pages", d.Strip.Pages)
	v.SetDefault("strip.markers", d.Strip.Markers)

	v.SetDefault("source.kind", d.Source.Kind)
	v.SetDefault("source.ignore", d.Source.Ignore)
	v.SetDefault("source.max_file_size", d.Source.MaxFileSize)
	v.SetDefault("source.workers", d.Source.Workers)

	v.SetDefault("server.open", d.Server.Open)

	v.SetDefault("test.globals", d.Test.Globals)
	v.SetDefault("test.environment", d.Test.Environment)
	v.SetDefault("test.exclude", d.Test.Exclude)
}
