// Package classify routes module identifiers to named output groups.
package classify

import (
	"strings"

	"go.uber.org/zap"

	"github.com/phobologic/chunkplan/internal/model"
)

// DefaultDependencyMarker identifies third-party modules.
const DefaultDependencyMarker = "node_modules"

// Rule routes modules whose identifier contains any of Contains to Group, or to
// APIGroup for API modules. An empty APIGroup means API modules get no group.
// A rule with no Contains matches every identifier in its scope.
type Rule struct {
	Contains []string `mapstructure:"contains" yaml:"contains,omitempty" json:"contains,omitempty"`
	// Dependency scopes the rule to third-party modules; other rules only see
	// project modules.
	Dependency bool   `mapstructure:"dependency" yaml:"dependency,omitempty" json:"dependency,omitempty"`
	Group      string `mapstructure:"group" yaml:"group" json:"group"`
	APIGroup   string `mapstructure:"api_group" yaml:"api_group,omitempty" json:"api_group,omitempty"`
}

func (r Rule) matches(id string) bool {
	if len(r.Contains) == 0 {
		return true
	}
	for _, s := range r.Contains {
		if strings.Contains(id, s) {
			return true
		}
	}
	return false
}

// DefaultRules is the rule table of the companion tool build. Order matters:
// the first matching rule wins.
func DefaultRules() []Rule {
	return []Rule{
		// Third-party dependencies.
		{Dependency: true, Contains: []string{"@mui", "@emotion"}, Group: "mui"},
		{Dependency: true, Contains: []string{"react-i18next"}, Group: "react"},
		{Dependency: true, Contains: []string{"react", "scheduler"}, Group: "react"},
		{Dependency: true, Contains: []string{"i18next"}, Group: "i18n-core", APIGroup: "api-i18n-core"},
		{Dependency: true, Group: "vendor", APIGroup: "api-vendor"},

		// Static data assets.
		{Contains: []string{"pokemon.json"}, Group: "pokemon", APIGroup: "api-pokemon"},
		{Contains: []string{"field.json"}, Group: "field", APIGroup: "api-field"},
		{Contains: []string{"event.json"}, Group: "event", APIGroup: "api-event"},
		{Contains: []string{"news.json"}, Group: "news", APIGroup: "api-news"},

		// Project modules.
		{Contains: []string{"/src/i18n/", "/src/i18n.ts"}, Group: "i18n"},
		{Contains: []string{"/src/i18n-api.ts"}, Group: "api-i18n", APIGroup: "api-i18n"},
		{Contains: []string{"PokemonIconData.ts"}, Group: "pokemon-icon", APIGroup: "api-pokemon-icon"},
		{Contains: []string{"ui/Resources"}, Group: "svg-icon", APIGroup: "api-svg-icon"},
		{Contains: []string{"/src/data"}, Group: "data", APIGroup: "api-data"},
		{Contains: []string{"/src/util/"}, Group: "util", APIGroup: "api-util"},
		{Contains: []string{"/src/ui/"}, Group: "ui"},
	}
}

// Classifier applies an ordered rule table.
type Classifier struct {
	rules  []Rule
	marker string
	logger *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDependencyMarker overrides the substring that marks third-party modules.
func WithDependencyMarker(marker string) Option {
	return func(c *Classifier) { c.marker = marker }
}

// WithLogger enables debug logging of every decision.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

// New returns a Classifier for rules. A nil rules slice selects DefaultRules.
func New(rules []Rule, opts ...Option) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	c := &Classifier{
		rules:  rules,
		marker: DefaultDependencyMarker,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the group for a module, or model.NoGroup.
func (c *Classifier) Classify(id string, isAPI bool) string {
	group, _ := c.Explain(id, isAPI)
	return group
}

// Explain returns the group for a module and the index of the rule that
// decided it, or -1 when no rule matched.
func (c *Classifier) Explain(id string, isAPI bool) (string, int) {
	dependency := c.IsDependency(id)
	for i, rule := range c.rules {
		if rule.Dependency != dependency || !rule.matches(id) {
			continue
		}
		group := rule.Group
		if isAPI {
			group = rule.APIGroup
		}
		c.logger.Debug("classified module",
			zap.String("module", id),
			zap.Bool("api", isAPI),
			zap.String("group", group),
			zap.Int("rule", i))
		return group, i
	}
	c.logger.Debug("no group for module", zap.String("module", id), zap.Bool("api", isAPI))
	return model.NoGroup, -1
}

// IsDependency reports whether the identifier denotes a third-party module.
func (c *Classifier) IsDependency(id string) bool {
	return c.marker != "" && strings.Contains(id, c.marker)
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// FrameworkGroups returns the groups that API pages must never load: those
// whose rules route API modules to no group.
func (c *Classifier) FrameworkGroups() []string {
	seen := make(map[string]struct{})
	var groups []string
	for _, rule := range c.rules {
		if rule.APIGroup != "" || rule.Group == "" {
			continue
		}
		if _, dup := seen[rule.Group]; dup {
			continue
		}
		seen[rule.Group] = struct{}{}
		groups = append(groups, rule.Group)
	}
	return groups
}
