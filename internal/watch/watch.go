// Where: internal/watch/watch.go
// What: Project file watching with debounce.
// Why: Re-run environments when sources change without storming on editor saves.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches bursts of events, editor saves typically produce
// several within a few milliseconds.
const DefaultDebounce = 300 * time.Millisecond

// Options select what to watch.
type Options struct {
	// Root is the project directory.
	Root string
	// Paths narrows watching to these directories relative to Root. Empty
	// watches the whole project.
	Paths []string
	// Exclude lists absolute directories never descended into, the work
	// dir in practice.
	Exclude []string
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration
}

// Run watches until the context is canceled, invoking onChange after each
// debounced batch of file events.
func Run(ctx context.Context, opts Options, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	roots := watchRoots(opts)
	for _, root := range roots {
		if err := addTree(watcher, root, opts); err != nil {
			return err
		}
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if Skip(event.Name, opts) {
				continue
			}
			// New directories need explicit registration.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addTree(watcher, event.Name, opts)
				}
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)

		case <-timer.C:
			onChange()
		}
	}
}

// watchRoots resolves the directories to register.
func watchRoots(opts Options) []string {
	if len(opts.Paths) == 0 {
		return []string{opts.Root}
	}
	var roots []string
	for _, p := range opts.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(opts.Root, p)
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			roots = append(roots, p)
		}
	}
	if len(roots) == 0 {
		return []string{opts.Root}
	}
	return roots
}

// addTree registers root and every non-skipped subdirectory.
func addTree(watcher *fsnotify.Watcher, root string, opts Options) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && Skip(path, opts) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Skip reports whether a path is outside the watched scope: excluded
// directories and anything under a dot-directory.
func Skip(path string, opts Options) bool {
	for _, exclude := range opts.Exclude {
		if path == exclude || strings.HasPrefix(path, exclude+string(os.PathSeparator)) {
			return true
		}
	}
	rel, err := filepath.Rel(opts.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if len(part) > 1 && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
