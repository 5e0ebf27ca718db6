// chunkplan decides how the modules of a multi-page web app are grouped into
// output chunks, and keeps API pages free of the UI framework.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/chunkplan/internal/config"
	"github.com/phobologic/chunkplan/internal/discover"
	"github.com/phobologic/chunkplan/internal/model"
	"github.com/phobologic/chunkplan/internal/plan"
	"github.com/phobologic/chunkplan/internal/ranking"
	"github.com/phobologic/chunkplan/internal/source"
	"github.com/phobologic/chunkplan/internal/toon"
	"github.com/phobologic/chunkplan/internal/watch"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(&app{stdout: stdout, stderr: stderr})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// app carries the persistent flags and output streams shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	dir        string
	configFile string
	verbose    bool

	log *zap.Logger
}

// logger returns a console logger on stderr: warnings and above by default,
// everything with --verbose.
func (a *app) logger() *zap.Logger {
	if a.log != nil {
		return a.log
	}
	level := zapcore.WarnLevel
	if a.verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(a.stderr), level)
	a.log = zap.New(core)
	return a.log
}

func (a *app) loadConfig(root string) (*config.Config, error) {
	var opts []config.LoaderOption
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	cfg, err := config.NewLoader(root, opts...).Load()
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		a.logger().Debug("loaded config", zap.String("file", cfg.File))
	}
	return cfg, nil
}

type planOptions struct {
	format     string
	group      string
	module     string
	apiOnly    bool
	maxModules int
	strategy   string
	shared     string
	source     string
	cachePath  string
	progress   bool
	watch      bool
}

// filtered reports whether the output is narrowed from the full plan.
func (o *planOptions) filtered() bool {
	return o.group != "" || o.module != "" || o.apiOnly || o.maxModules > 0
}

// overridden reports whether a flag changes the plan itself, so a cached plan
// built from the config file alone no longer applies.
func (o *planOptions) overridden() bool {
	return o.strategy != "" || o.shared != "" || o.source != ""
}

func addPlanFlags(cmd *cobra.Command, o *planOptions) {
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "toon", "output format: toon, json or yaml")
	f.StringVarP(&o.group, "group", "g", "", "only modules whose group contains this substring")
	f.StringVarP(&o.module, "module", "m", "", "only modules whose id contains this substring")
	f.BoolVar(&o.apiOnly, "api-only", false, "only modules in the API set")
	f.IntVarP(&o.maxModules, "max-modules", "n", 0, "maximum number of modules to include")
	f.StringVar(&o.strategy, "strategy", "", "membership strategy (overrides config)")
	f.StringVar(&o.shared, "shared", "", "shared module policy: api or ui (overrides config)")
	f.StringVar(&o.source, "source", "", "graph source: scan or esbuild (overrides config)")
	f.StringVar(&o.cachePath, "cache", "", "cache file for the unfiltered toon output")
	f.BoolVar(&o.progress, "progress", false, "show a progress bar while parsing")
	f.BoolVar(&o.watch, "watch", false, "re-plan whenever a source file changes")
}

func newRootCmd(a *app) *cobra.Command {
	var (
		opts        planOptions
		showVersion bool
	)
	cmd := &cobra.Command{
		Use:   "chunkplan [root]",
		Short: "Plan output chunks for a multi-page web app",
		Long: `chunkplan builds the import graph of a multi-page front-end project,
decides which modules belong to API-only pages, and routes every module to a
named output chunk. API pages never load the UI framework.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				_, _ = fmt.Fprintf(a.stdout, "chunkplan %s\n", version)
				return nil
			}
			return a.runPlan(cmd.Context(), rootArg(a, args), &opts)
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.dir, "dir", "C", ".", "project root for subcommands")
	pf.StringVar(&a.configFile, "config", "", "config file (default is chunkplan.yaml in the project root)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log every decision")
	cmd.Flags().BoolVarP(&showVersion, "version", "V", false, "show version and exit")
	addPlanFlags(cmd, &opts)

	cmd.AddCommand(
		newPlanCmd(a),
		newClassifyCmd(a),
		newStripCmd(a),
		newNamesCmd(a),
		newConfigCmd(a),
		newInitCmd(a),
	)
	return cmd
}

func newPlanCmd(a *app) *cobra.Command {
	var opts planOptions
	cmd := &cobra.Command{
		Use:   "plan [root]",
		Short: "Print the chunk plan (the default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlan(cmd.Context(), rootArg(a, args), &opts)
		},
	}
	addPlanFlags(cmd, &opts)
	return cmd
}

func rootArg(a *app, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.dir
}

func projectRoot(root string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", root)
	}
	return root, nil
}

func (a *app) runPlan(ctx context.Context, root string, opts *planOptions) error {
	root, err := projectRoot(root)
	if err != nil {
		return err
	}
	if _, err := encode(&model.Plan{}, opts.format); err != nil {
		return err
	}

	cfg, err := a.loadConfig(root)
	if err != nil {
		return err
	}
	if opts.strategy != "" {
		cfg.Membership.Strategy = opts.strategy
	}
	if opts.shared != "" {
		cfg.Membership.Shared = opts.shared
	}
	if opts.source != "" {
		cfg.Source.Kind = opts.source
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	log := a.logger()

	useCache := opts.cachePath != "" && !opts.filtered() && !opts.overridden() && !opts.watch && opts.format == "toon"
	if opts.cachePath != "" && !useCache {
		log.Debug("output cache only applies to unfiltered toon output without plan overrides")
	}
	if useCache && cacheIsFresh(opts.cachePath, root, cfg) {
		if data, err := os.ReadFile(opts.cachePath); err == nil {
			_, _ = a.stdout.Write(data)
			return nil
		}
	}

	parseCache, err := source.NewCache(source.DefaultCacheSize)
	if err != nil {
		return err
	}
	plannerOpts := []plan.Option{plan.WithLogger(log), plan.WithCache(parseCache)}
	if opts.progress {
		plannerOpts = append(plannerOpts, plan.WithProgress(source.NewBarProgress(a.stderr)))
	}
	planner := plan.New(cfg, root, plannerOpts...)

	render := func(ctx context.Context) error {
		res, err := planner.Build(ctx)
		if err != nil {
			return err
		}
		out, err := encode(narrow(res.Plan, opts), opts.format)
		if err != nil {
			return err
		}
		if useCache {
			if err := os.WriteFile(opts.cachePath, out, 0o644); err != nil {
				log.Warn("failed to write cache", zap.String("file", opts.cachePath), zap.Error(err))
			}
		}
		_, err = a.stdout.Write(out)
		return err
	}

	if !opts.watch {
		return render(ctx)
	}

	if err := render(ctx); err != nil {
		log.Error("planning failed", zap.Error(err))
	}
	w, err := watch.New(root, watch.Options{Logger: log})
	if err != nil {
		return err
	}
	err = w.Run(ctx, func(ctx context.Context, files []string) {
		log.Info("re-planning", zap.Strings("changed", files))
		if err := render(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("planning failed", zap.Error(err))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func narrow(p *model.Plan, opts *planOptions) *model.Plan {
	if opts.group != "" {
		p = ranking.FilterByGroup(p, opts.group)
	}
	if opts.module != "" {
		p = ranking.FilterByModule(p, opts.module)
	}
	if opts.apiOnly {
		p = ranking.FilterAPI(p)
	}
	if opts.maxModules > 0 {
		p = ranking.SelectModules(p, opts.maxModules)
	}
	return p
}

func encode(p *model.Plan, format string) ([]byte, error) {
	switch format {
	case "toon":
		return []byte(toon.Encode(p) + "\n"), nil
	case "json":
		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml":
		return yaml.Marshal(p)
	}
	return nil, fmt.Errorf("unknown format %q (want toon, json or yaml)", format)
}

// cacheIsFresh reports whether the cache file is newer than the config file
// and every project file the plan is built from.
func cacheIsFresh(cachePath, root string, cfg *config.Config) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()
	if abs, err := filepath.Abs(cachePath); err == nil {
		cachePath = abs
	}

	files, err := discover.Files(root, discover.Options{
		Ignore:      cfg.Source.Ignore,
		MaxFileSize: cfg.Source.MaxFileSize,
	})
	if err != nil {
		return false
	}
	paths := make([]string, 0, len(files)+1)
	for _, f := range files {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(f.Path)))
	}
	if cfg.File != "" {
		paths = append(paths, cfg.File)
	}

	for _, p := range paths {
		if p == cachePath {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}
