// Package watch re-runs a callback when source files under a project root
// change, coalescing bursts of events.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a batch of changes is delivered.
const DefaultDebounce = 300 * time.Millisecond

// DefaultExtensions are the file types that affect a plan.
var DefaultExtensions = []string{".html", ".js", ".jsx", ".mjs", ".ts", ".tsx", ".mts", ".json", ".yaml", ".yml", ".css"}

// DefaultSkipDirs are directory names never watched.
var DefaultSkipDirs = []string{"node_modules", "dist", "build", "coverage"}

// Options configures a Watcher. Zero values select the defaults.
type Options struct {
	Debounce   time.Duration
	Extensions []string
	SkipDirs   []string
	Logger     *zap.Logger
}

// Watcher watches a directory tree recursively.
type Watcher struct {
	root       string
	fs         *fsnotify.Watcher
	debounce   time.Duration
	extensions map[string]struct{}
	skip       map[string]struct{}
	logger     *zap.Logger
}

// New starts watching every directory under root.
func New(root string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		root:       root,
		fs:         fw,
		debounce:   opts.Debounce,
		extensions: toSet(opts.Extensions),
		skip:       toSet(opts.SkipDirs),
		logger:     opts.Logger,
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers batches of changed files, as sorted root-relative slash paths,
// to onChange until ctx is done. onChange runs on the watch goroutine, so
// batches never overlap. Run closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, files []string)) error {
	defer func() { _ = w.fs.Close() }()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
			}
			rel, ok := w.relevant(event)
			if !ok {
				continue
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			sort.Strings(files)
			clear(pending)
			w.logger.Debug("files changed", zap.Strings("files", files))
			onChange(ctx, files)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// relevant filters events to writes, creates, removes and renames of files
// with a watched extension.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	if _, ok := w.extensions[strings.ToLower(filepath.Ext(event.Name))]; !ok {
		return "", false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			if errors.Is(err, fsnotify.ErrClosed) {
				return err
			}
			w.logger.Warn("failed to watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := w.skip[name]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
