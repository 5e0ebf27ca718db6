package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/chunkplan/internal/postprocess"
)

func newStripCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "strip [dir]",
		Short: "Remove framework script and preload tags from built API pages",
		Long: `Strip rewrites the API pages of a finished build so they load no UI
framework chunk. dir defaults to out_dir under the project root.

The build manifest (.vite/manifest.json), when present, names the chunks;
otherwise names are derived from the file names.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(a.dir)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(root)
			if err != nil {
				return err
			}
			dir := filepath.Join(root, cfg.OutDir)
			if len(args) > 0 {
				dir = args[0]
			}

			results, err := postprocess.Run(cmd.Context(), dir, postprocess.Options{
				Pages:           cfg.Strip.Pages,
				Expected:        cfg.APIPages(),
				Markers:         cfg.Strip.Markers,
				FrameworkGroups: cfg.Classifier().FrameworkGroups(),
				APIPrefix:       cfg.API.GroupPrefix,
				DryRun:          dryRun,
				Logger:          a.logger(),
			})
			if err != nil {
				return err
			}

			changed := 0
			for _, r := range results {
				if len(r.Removed) == 0 {
					_, _ = fmt.Fprintf(a.stdout, "%s: unchanged\n", r.Path)
					continue
				}
				changed++
				_, _ = fmt.Fprintf(a.stdout, "%s: removed %d\n", r.Path, len(r.Removed))
				for _, url := range r.Removed {
					_, _ = fmt.Fprintf(a.stdout, "  %s\n", url)
				}
			}
			verb := "rewrote"
			if dryRun {
				verb = "would rewrite"
			}
			_, _ = fmt.Fprintf(a.stderr, "%s %d of %d api pages\n", verb, changed, len(results))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without writing")
	return cmd
}
