package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phobologic/chunkplan/internal/classify"
	"github.com/phobologic/chunkplan/internal/model"
)

func newClassifyCmd(a *app) *cobra.Command {
	var api, explain bool
	cmd := &cobra.Command{
		Use:   "classify <module-id>...",
		Short: "Show the output group of module identifiers",
		Long: `Classify routes each module identifier through the configured rule table
and prints the group it lands in. A "-" group means the bundler's default
chunking applies.

Examples:
  chunkplan classify /node_modules/react/index.js
  chunkplan classify --api --explain src/util/strength.ts`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(a.dir)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(root)
			if err != nil {
				return err
			}
			c := cfg.Classifier(classify.WithLogger(a.logger()))
			rules := c.Rules()

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, arg := range args {
				id := model.ModuleID(arg)
				group, idx := c.Explain(id, api)
				if group == model.NoGroup {
					group = "-"
				}
				if !explain {
					_, _ = fmt.Fprintf(tw, "%s\t%s\n", id, group)
					continue
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", id, group, describeRule(rules, idx))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&api, "api", false, "classify as members of the API set")
	cmd.Flags().BoolVar(&explain, "explain", false, "show the rule that decided each group")
	return cmd
}

func describeRule(rules []classify.Rule, idx int) string {
	if idx < 0 || idx >= len(rules) {
		return "no matching rule"
	}
	r := rules[idx]
	match := "any module"
	if len(r.Contains) > 0 {
		match = "contains " + strings.Join(r.Contains, "|")
	}
	scope := "project"
	if r.Dependency {
		scope = "dependency"
	}
	return fmt.Sprintf("rule %d (%s, %s)", idx, scope, match)
}
