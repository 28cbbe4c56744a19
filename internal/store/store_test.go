package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arrowheadlabs/scrubfs/internal/logging"
)

func openTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scrubfs.db")
	sidecarPath := filepath.Join(dir, "scrubfs.db.check")
	st, err := Open(dbPath, sidecarPath, logging.NewRoot(logging.LevelDisabled))
	if err != nil {
		t.Fatal(err)
	}
	return st, dbPath, sidecarPath
}

// TestOpenEmptyStoreStartsAtGenerationOne verifies that a fresh store with
// no prior snapshot begins at generation 1.
func TestOpenEmptyStoreStartsAtGenerationOne(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	if st.Generation != 1 {
		t.Errorf("expected generation 1, got %d", st.Generation)
	}
}

// TestCloseThenOpenRoundTripsRecords verifies that records written in one
// session survive a Close/Open cycle with their fields intact.
func TestCloseThenOpenRoundTripsRecords(t *testing.T) {
	st, dbPath, sidecarPath := openTestStore(t)

	if _, err := st.MetadataCheck("/a/file", 100, 1000.0, 1000.0); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := Open(dbPath, sidecarPath, logging.NewRoot(logging.LevelDisabled))
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	records, err := st2.ListPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", len(records))
	}
	if records[0].Path != "/a/file" || records[0].Size != 100 {
		t.Errorf("unexpected record after reopen: %+v", records[0])
	}
	// The prior session's generation was 1; a fresh Open with existing
	// records bumps the generation to maxGeneration+1.
	if st2.Generation != 2 {
		t.Errorf("expected generation 2 on reopen, got %d", st2.Generation)
	}
}

// TestCorruptedSidecarFailsIntegrityCheck verifies that a tampered sidecar
// digest causes Open to fail with ErrIntegrityCheckFailed.
func TestCorruptedSidecarFailsIntegrityCheck(t *testing.T) {
	st, dbPath, sidecarPath := openTestStore(t)
	if _, err := st.MetadataCheck("/a/file", 1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(sidecarPath, []byte("0000000000000000000000000000000000000000000000000000000000000000"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(dbPath, sidecarPath, logging.NewRoot(logging.LevelDisabled))
	if err == nil {
		t.Fatal("expected integrity check failure, got nil error")
	}
	if err != ErrIntegrityCheckFailed {
		t.Errorf("expected ErrIntegrityCheckFailed, got %v", err)
	}
}

// TestMissingSidecarDoesNotFailOpen verifies that a first-ever run with no
// sidecar file present succeeds: an absent sidecar is not a failure, only a
// mismatched one is.
func TestMissingSidecarDoesNotFailOpen(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "db"), filepath.Join(dir, "db.check"), logging.NewRoot(logging.LevelDisabled))
	if err != nil {
		t.Fatal(err)
	}
	st.Close()
}

// TestOpenRemovesOrphanedIndexDir verifies that a working index directory
// left behind by a prior run that never reached Close (a kill or crash) is
// cleaned up by the next Open rather than accumulating forever.
func TestOpenRemovesOrphanedIndexDir(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db")

	orphan, err := os.MkdirTemp(dir, ".scrubfs-index-*")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orphan, "marker"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := Open(dbPath, filepath.Join(dir, "db.check"), logging.NewRoot(logging.LevelDisabled))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("expected orphaned index directory %s to be removed, stat err = %v", orphan, err)
	}
}

// TestCheckpointFlushesWithoutClosing verifies that Checkpoint writes the
// snapshot and sidecar to disk while leaving the store usable for further
// writes.
func TestCheckpointFlushesWithoutClosing(t *testing.T) {
	st, dbPath, sidecarPath := openTestStore(t)
	defer st.Close()

	if _, err := st.MetadataCheck("/a/file", 10, 5.0, 5.0); err != nil {
		t.Fatal(err)
	}
	if err := st.Checkpoint(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected checkpoint to write the snapshot file, got %v", err)
	}
	if _, err := os.Stat(sidecarPath); err != nil {
		t.Errorf("expected checkpoint to write the sidecar digest, got %v", err)
	}

	// The store must still accept writes after a checkpoint.
	if _, err := st.MetadataCheck("/b/file", 20, 6.0, 6.0); err != nil {
		t.Fatal(err)
	}
	records, err := st.ListPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records after a post-checkpoint write, got %d", len(records))
	}
}

// TestMetadataCheckInsertsFreshRecord verifies that the first observation
// of a path creates an un-hashed record with no checksum.
func TestMetadataCheckInsertsFreshRecord(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	dirty, err := st.MetadataCheck("/a/file", 10, 5.0, 5.0)
	if err != nil {
		t.Fatal(err)
	}
	if dirty {
		t.Error("expected dirty=false for a fresh insert")
	}

	records, err := st.ListPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Checksum != nil {
		t.Errorf("expected one un-hashed record, got %+v", records)
	}
}

// TestMetadataCheckMarksDirtyOnSizeChange verifies that a changed size
// marks the record dirty.
func TestMetadataCheckMarksDirtyOnSizeChange(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	if _, err := st.MetadataCheck("/a/file", 10, 5.0, 5.0); err != nil {
		t.Fatal(err)
	}
	dirty, err := st.MetadataCheck("/a/file", 20, 5.0, 5.0)
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Error("expected dirty=true after size change")
	}
}

// TestMetadataCheckMtimeBoundaryExactlyOneIsNotDirty verifies the |Δmtime|
// boundary: exactly 1.0 seconds of drift does not mark the record dirty
// (the comparison is a strict "> 1", not ">=").
func TestMetadataCheckMtimeBoundaryExactlyOneIsNotDirty(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	if _, err := st.MetadataCheck("/a/file", 10, 5.0, 5.0); err != nil {
		t.Fatal(err)
	}
	dirty, err := st.MetadataCheck("/a/file", 10, 6.0, 5.0)
	if err != nil {
		t.Fatal(err)
	}
	if dirty {
		t.Error("expected dirty=false at exactly |Δmtime|=1.0")
	}
}

// TestMetadataCheckMtimeBoundaryJustOverOneIsDirty verifies that drift just
// beyond 1.0 seconds marks the record dirty.
func TestMetadataCheckMtimeBoundaryJustOverOneIsDirty(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	if _, err := st.MetadataCheck("/a/file", 10, 5.0, 5.0); err != nil {
		t.Fatal(err)
	}
	dirty, err := st.MetadataCheck("/a/file", 10, 6.0001, 5.0)
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Error("expected dirty=true at |Δmtime|=1.0001")
	}
}

// TestMetadataCheckPreservesCtimeWhenNotDirty verifies that a spurious
// ctime-only bump with no size/mtime change does not overwrite the stored
// ctime.
func TestMetadataCheckPreservesCtimeWhenNotDirty(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	if _, err := st.MetadataCheck("/a/file", 10, 5.0, 5.0); err != nil {
		t.Fatal(err)
	}
	if _, err := st.MetadataCheck("/a/file", 10, 5.0, 999.0); err != nil {
		t.Fatal(err)
	}

	records, err := st.ListPaths()
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Ctime != 5.0 {
		t.Errorf("expected ctime preserved at 5.0, got %v", records[0].Ctime)
	}
}

// TestMetadataCleanDropsStaleGenerations verifies that records not
// refreshed to the current generation are removed by MetadataClean.
func TestMetadataCleanDropsStaleGenerations(t *testing.T) {
	st, dbPath, sidecarPath := openTestStore(t)
	if _, err := st.MetadataCheck("/a/file", 10, 5.0, 5.0); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := Open(dbPath, sidecarPath, logging.NewRoot(logging.LevelDisabled))
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	// Nothing re-observes /a/file this pass, so its generation remains
	// stale relative to st2.Generation.
	if err := st2.MetadataClean(); err != nil {
		t.Fatal(err)
	}

	records, err := st2.ListPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected stale record to be dropped, got %+v", records)
	}
}

// TestGetFileToScrubReturnsUnhashedBeforeDirty verifies the tier priority:
// an unhashed record is selected before a dirty one.
func TestGetFileToScrubReturnsUnhashedBeforeDirty(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	dirtyPath := filepath.Join(t.TempDir(), "dirty")
	unhashedPath := filepath.Join(t.TempDir(), "unhashed")
	mustCreate(t, dirtyPath)
	mustCreate(t, unhashedPath)

	if _, err := st.MetadataCheck(dirtyPath, 1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := st.PersistScrub(dirtyPath, 1, 1, 1, []byte("sum"), time.Now()); err != nil {
		t.Fatal(err)
	}
	// Re-observe with a changed size to mark it dirty.
	if _, err := st.MetadataCheck(dirtyPath, 2, 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := st.MetadataCheck(unhashedPath, 1, 1, 1); err != nil {
		t.Fatal(err)
	}

	f, rec, err := st.GetFileToScrub(0)
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("expected a candidate")
	}
	defer f.Close()
	if rec.Path != unhashedPath {
		t.Errorf("expected unhashed record selected first, got %s", rec.Path)
	}
}

// TestGetFileToScrubDropsRecordForMissingFile verifies that a candidate
// whose file has disappeared is dropped and selection continues to the
// next candidate.
func TestGetFileToScrubDropsRecordForMissingFile(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	gone := filepath.Join(t.TempDir(), "gone")
	mustCreate(t, gone)
	if _, err := st.MetadataCheck(gone, 1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	f, rec, err := st.GetFileToScrub(0)
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Error("expected no candidate after the only one disappeared")
	}
	if rec != nil {
		t.Error("expected nil record")
	}

	if err := st.DropFile(gone); err != nil {
		t.Fatal(err)
	}
	records, err := st.ListPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected the missing file's record to be gone, got %+v", records)
	}
}

// TestPersistScrubClearsCooldownAndMarksClean verifies that a completed
// scrub clears dirty/last_skip and sets clean plus the fresh metadata.
func TestPersistScrubClearsCooldownAndMarksClean(t *testing.T) {
	st, _, _ := openTestStore(t)
	defer st.Close()

	path := filepath.Join(t.TempDir(), "f")
	mustCreate(t, path)
	if _, err := st.MetadataCheck(path, 1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := st.PersistSkip(path, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := st.PersistScrub(path, 5, 10, 10, []byte("checksum"), time.Now()); err != nil {
		t.Fatal(err)
	}

	records, err := st.ListPaths()
	if err != nil {
		t.Fatal(err)
	}
	rec := records[0]
	if rec.Dirty || !rec.Clean {
		t.Errorf("expected clean=true, dirty=false, got %+v", rec)
	}
	if !rec.LastSkip.IsZero() {
		t.Error("expected last_skip cleared after a successful scrub")
	}
	if rec.Size != 5 || string(rec.Checksum) != "checksum" {
		t.Errorf("expected fresh metadata recorded, got %+v", rec)
	}
}

func mustCreate(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
}

