package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phobologic/chunkplan/internal/plan"
)

func newNamesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "Print the output file names of every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(a.dir)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(root)
			if err != nil {
				return err
			}
			entries, err := plan.New(cfg, root, plan.WithLogger(a.logger())).Entries()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ENTRY\tAPI\tOUTPUT\tDOCUMENT")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", e.Name, e.API, e.Output, e.Document)
			}
			return tw.Flush()
		},
	}
}
