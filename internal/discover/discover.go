// Package discover turns command-line arguments into the ordered list of
// files to ingest.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/Veraticus/spice-ingest/internal/pathmatch"
)

// ErrNoFiles is returned when nothing matched any pattern.
var ErrNoFiles = errors.New("no files found")

// Pruner decides whether a directory can contain matching files.
type Pruner interface {
	Prune(dir string) pathmatch.Outcome
}

// Walk lists the regular files under dir in lexical order, skipping hidden
// entries and directories the pruner rules out. Paths are slash-separated
// and relative to the root of fsys, which is what format rules match
// against.
func Walk(ctx context.Context, fsys fs.FS, dir string, pruner Pruner) ([]string, error) {
	var files []string
	pruned := 0

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if pruner != nil && pruner.Prune(rel(p)) == pathmatch.Fail {
				slog.Debug("Pruned directory", "dir", p)
				pruned++
				if p == dir {
					return fs.SkipAll
				}
				return fs.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	slog.Debug("Walked directory", "dir", dir, "files", len(files), "pruned_dirs", pruned)
	return files, nil
}

// Expand resolves patterns against fsys. Each pattern is a glob; matching
// directories are walked with Walk. A pattern that matches nothing is
// logged and skipped. Duplicates are dropped, keeping first-seen order.
func Expand(ctx context.Context, fsys fs.FS, patterns []string, pruner Pruner) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			all = append(all, p)
		}
	}

	for _, pattern := range patterns {
		pattern = clean(pattern)
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, statErr := fs.Stat(fsys, pattern); statErr != nil {
				slog.Warn("No files found matching pattern", "pattern", pattern)
				continue
			}
			matches = []string{pattern}
		}

		for _, m := range matches {
			info, err := fs.Stat(fsys, m)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", m, err)
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			files, err := Walk(ctx, fsys, m, pruner)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		}
	}

	if len(all) == 0 {
		return nil, ErrNoFiles
	}
	return all, nil
}

// clean converts a user path to the form io/fs expects.
func clean(p string) string {
	p = path.Clean(strings.ReplaceAll(p, `\`, "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

func rel(dir string) string {
	if dir == "." {
		return ""
	}
	return dir
}
