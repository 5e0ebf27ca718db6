package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phobologic/chunkplan/internal/naming"
	"github.com/phobologic/chunkplan/internal/reach"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks that the configuration is complete and consistent.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(cfg.Entries) == 0 {
		add("at least one entry is required")
	}
	names := make(map[string]struct{}, len(cfg.Entries))
	for i, e := range cfg.Entries {
		if strings.TrimSpace(e.Name) == "" {
			add("entries[%d]: name is required", i)
		}
		if strings.TrimSpace(e.Path) == "" {
			add("entries[%d]: path is required", i)
		}
		if _, dup := names[e.Name]; dup {
			add("entries[%d]: duplicate name %q", i, e.Name)
		}
		names[e.Name] = struct{}{}
	}
	for _, name := range cfg.API.Entries {
		if _, ok := names[name]; !ok {
			add("api.entries: unknown entry %q", name)
		}
	}
	if strings.TrimSpace(cfg.API.Dir) == "" {
		add("api.dir is required")
	}

	if _, err := reach.ParseStrategy(cfg.Membership.Strategy); err != nil {
		add("membership.strategy: %v (valid: %s)", err, strategyList())
	}
	switch reach.SharedPolicy(cfg.Membership.Shared) {
	case reach.SharedAPI, reach.SharedUI:
	default:
		add("membership.shared: must be %q or %q, got %q", reach.SharedAPI, reach.SharedUI, cfg.Membership.Shared)
	}

	for i, r := range cfg.Rules {
		if r.Group == "" && r.APIGroup == "" && len(r.Contains) == 0 {
			add("rules[%d]: empty rule matches everything and assigns nothing", i)
		}
	}

	for field, tmpl := range map[string]string{
		"output.entry":     cfg.Output.Entry,
		"output.chunk":     cfg.Output.Chunk,
		"output.asset":     cfg.Output.Asset,
		"output.api_asset": cfg.Output.APIAsset,
	} {
		if err := naming.ValidateTemplate(tmpl); err != nil {
			add("%s: %v", field, err)
		}
	}
	if cfg.Output.HashLength <= 0 || cfg.Output.HashLength > 64 {
		add("output.hash_length: must be between 1 and 64, got %d", cfg.Output.HashLength)
	}

	switch cfg.Source.Kind {
	case SourceScan, SourceEsbuild:
	default:
		add("source.kind: must be %q or %q, got %q", SourceScan, SourceEsbuild, cfg.Source.Kind)
	}
	if cfg.Source.MaxFileSize < 0 {
		add("source.max_file_size: cannot be negative, got %d", cfg.Source.MaxFileSize)
	}
	if cfg.Source.Workers < 0 {
		add("source.workers: cannot be negative, got %d", cfg.Source.Workers)
	}

	switch len(problems) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%w: %s", ErrInvalid, problems[0])
	}
	return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(problems, "\n  - "))
}

func strategyList() string {
	names := make([]string, len(reach.Strategies))
	for i, s := range reach.Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
