// Package discover finds the front-end source files of a project.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/chunkplan/internal/lang"
)

// Kind classifies a discovered file by how the bundler treats it.
type Kind string

const (
	Script   Kind = "script"   // Parsed for imports
	Document Kind = "document" // HTML entry documents
	Data     Kind = "data"     // JSON and other leaf modules
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to project root, slash separated
	Kind     Kind
	Language string // Tree-sitter language for scripts, "" otherwise
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"build":        {},
	"dist":         {},
	"coverage":     {},
	".vite":        {},
	".cache":       {},
	".turbo":       {},
}

var dataExts = map[string]struct{}{
	".json": {},
	".css":  {},
	".svg":  {},
	".png":  {},
	".webp": {},
}

// Options filters discovery.
type Options struct {
	// Ignore holds glob patterns (with '/' as separator) matched against the
	// root-relative path. Matching files and directories are skipped.
	Ignore []string
	// MaxFileSize skips files larger than this many bytes when positive.
	MaxFileSize int64
}

// Files discovers front-end source files under root.
func Files(root string, opts Options) ([]FileEntry, error) {
	ignores := make([]glob.Glob, 0, len(opts.Ignore))
	for _, pattern := range opts.Ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		ignores = append(ignores, g)
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if matchAny(ignores, rel) || matchAny(ignores, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if matchAny(ignores, rel) {
			return nil
		}

		entry, ok := classifyFile(rel, name)
		if !ok {
			return nil
		}

		if opts.MaxFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > opts.MaxFileSize {
				return nil
			}
		}

		results = append(results, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func classifyFile(rel, name string) (FileEntry, bool) {
	if strings.HasSuffix(name, ".d.ts") {
		return FileEntry{}, false
	}
	if langName := lang.ForPath(rel); langName != "" {
		return FileEntry{Path: rel, Kind: Script, Language: langName}, true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".html" {
		return FileEntry{Path: rel, Kind: Document}, true
	}
	if _, ok := dataExts[ext]; ok {
		return FileEntry{Path: rel, Kind: Data}, true
	}
	return FileEntry{}, false
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// IsTestFile reports whether a path looks like a unit test module. The scanner
// skips them; no entry document imports a test.
func IsTestFile(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == "__tests__" || part == "__mocks__" {
			return true
		}
	}
	base := filepath.Base(rel)
	return strings.Contains(base, ".test.") || strings.Contains(base, ".spec.")
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
