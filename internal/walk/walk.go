// Package walk implements the path walker: it yields (path, stat) pairs for
// regular files under a set of configured roots, honoring cross-device
// policy and an ordered list of accept/reject filters.
//
// The traversal uses os.Lstat plus directory-content iteration, with no name
// sorting and symlinks never followed, restructured here as a pull-style
// iterator — rather than a callback-driven filepath.WalkFunc — so the scrub
// scheduler can advance the walk one entry at a time, interleaving it with
// scanning and reading.
package walk

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arrowheadlabs/scrubfs/internal/logging"
)

const separator = string(filepath.Separator)

// Entry is a single yielded regular file.
type Entry struct {
	Path string
	Info os.FileInfo
}

type dirFrame struct {
	path    string
	dev     uint64
	haveDev bool
	isRoot  bool
}

// Walker is a lazy, finite, pull-style traversal over a set of roots.
type Walker struct {
	xdev    bool
	rules   []Rule
	log     *logging.Logger
	roots   map[string]struct{}
	stack   []dirFrame
	pending []Entry
}

// New resolves roots to their canonical absolute form (deduplicating) and
// prepares a walker. A root that cannot be stat'd is logged and simply
// excluded; this never fails outright.
func New(roots []string, xdev bool, rules []Rule, log *logging.Logger) *Walker {
	w := &Walker{
		xdev:  xdev,
		rules: rules,
		log:   log,
		roots: make(map[string]struct{}),
	}

	seen := make(map[string]struct{})
	for _, root := range roots {
		canonical, err := canonicalize(root)
		if err != nil {
			w.log.Warn("skipping unreadable root %s: %v", root, err)
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}

		info, err := os.Lstat(canonical)
		if err != nil {
			w.log.Warn("skipping unreadable root %s: %v", canonical, err)
			continue
		}
		dev, haveDev := deviceID(info.Sys())
		w.roots[canonical] = struct{}{}
		w.stack = append(w.stack, dirFrame{path: canonical, dev: dev, haveDev: haveDev, isRoot: true})
	}
	return w
}

func canonicalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The root itself may be a symlink to something unreadable, or may
		// not exist; surface the absolute path so the caller can log it.
		return abs, err
	}
	return resolved, nil
}

// Next advances the walker, returning the next regular file encountered, or
// ok=false once the traversal is exhausted.
func (w *Walker) Next() (Entry, bool) {
	for {
		if len(w.pending) > 0 {
			entry := w.pending[0]
			w.pending = w.pending[1:]
			return entry, true
		}
		if len(w.stack) == 0 {
			return Entry{}, false
		}
		frame := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.visit(frame)
	}
}

func (w *Walker) visit(frame dirFrame) {
	entries, err := os.ReadDir(frame.path)
	if err != nil {
		w.log.Warn("failed to read directory %s: %v", frame.path, err)
		return
	}

	for _, entry := range entries {
		full := filepath.Join(frame.path, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.IsDir() {
			candidate := separator + full + separator
			if !decide(w.rules, candidate) {
				continue
			}
			w.descend(full, frame, info)
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}
		candidate := separator + full
		if !decide(w.rules, candidate) {
			continue
		}
		w.pending = append(w.pending, Entry{Path: full, Info: info})
	}
}

func (w *Walker) descend(path string, parent dirFrame, info fs.FileInfo) {
	_, isConfiguredRoot := w.roots[path]
	dev, haveDev := deviceID(info.Sys())

	if w.xdev && parent.haveDev && haveDev && dev != parent.dev && !isConfiguredRoot {
		return
	}

	w.stack = append(w.stack, dirFrame{path: path, dev: dev, haveDev: haveDev, isRoot: isConfiguredRoot})
}
