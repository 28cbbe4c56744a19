package walk

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/arrowheadlabs/scrubfs/internal/logging"
)

func collect(w *Walker) []string {
	var paths []string
	for {
		entry, ok := w.Next()
		if !ok {
			break
		}
		paths = append(paths, entry.Path)
	}
	sort.Strings(paths)
	return paths
}

// TestWalkerYieldsRegularFilesOnly verifies that only regular files are
// yielded, not directories, across nested directories.
func TestWalkerYieldsRegularFilesOnly(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.txt"), "a")
	mustMkdir(t, filepath.Join(root, "sub"))
	mustWriteFile(t, filepath.Join(root, "sub", "b.txt"), "b")

	w := New([]string{root}, false, nil, logging.NewRoot(logging.LevelDisabled))
	paths := collect(w)

	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(paths), paths)
	}
}

// TestWalkerAppliesFilterRules verifies that reject rules exclude matching
// files from the yielded set.
func TestWalkerAppliesFilterRules(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "keep.go"), "x")
	mustWriteFile(t, filepath.Join(root, "skip.tmp"), "x")

	reject, err := ParseRule("-\\.tmp$")
	if err != nil {
		t.Fatal(err)
	}
	w := New([]string{root}, false, []Rule{reject}, logging.NewRoot(logging.LevelDisabled))
	paths := collect(w)

	for _, p := range paths {
		if filepath.Ext(p) == ".tmp" {
			t.Errorf("expected .tmp file to be filtered out, found %s", p)
		}
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 file after filtering, got %d: %v", len(paths), paths)
	}
}

// TestWalkerDeduplicatesOverlappingRoots verifies that two roots resolving
// to the same canonical path only contribute files once.
func TestWalkerDeduplicatesOverlappingRoots(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.txt"), "a")

	w := New([]string{root, root + string(filepath.Separator)}, false, nil, logging.NewRoot(logging.LevelDisabled))
	paths := collect(w)

	if len(paths) != 1 {
		t.Fatalf("expected 1 file after dedup, got %d: %v", len(paths), paths)
	}
}

// TestWalkerSkipsUnreadableRootWithoutFailing verifies that a nonexistent
// root is logged and skipped rather than causing a failure.
func TestWalkerSkipsUnreadableRootWithoutFailing(t *testing.T) {
	w := New([]string{"/nonexistent/path/for/scrubfs/tests"}, false, nil, logging.NewRoot(logging.LevelDisabled))
	if _, ok := w.Next(); ok {
		t.Error("expected no entries from an unreadable root")
	}
}

func mustWriteFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
}
