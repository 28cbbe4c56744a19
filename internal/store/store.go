// Package store implements the metadata store: a durable table of per-file
// records with generation accounting and candidate selection for hashing.
//
// The store's durability contract names a single database file plus an
// adjacent sidecar digest. Because an LSM engine's on-disk representation
// mutates under background compaction independent of any logical change —
// which would make a raw LSM file an unstable target for a fixed digest —
// the single durable file is a flat, deterministically-ordered snapshot
// (gob-encoded) of every record, written on a clean Close and read once on
// Open. github.com/cockroachdb/pebble is used as a disposable, per-run
// working index rebuilt from that snapshot at Open and discarded at Close:
// it gives candidate selection the ordered range scans it needs without
// forcing a moving-target file into the digest contract. This mirrors the
// way pebble's own Checkpoint mechanism produces a stable, point-in-time
// view distinct from its live working state.
//
// Close is not the only place the snapshot gets written: Checkpoint writes
// it too, without tearing down the working index, so a caller running a
// long pass can bound the amount of progress an unhandled crash or kill
// erases to whatever happened since the last checkpoint rather than the
// whole run. A crash between checkpoints still leaves its working index
// directory behind; Open removes any such orphaned directory it finds
// before creating its own.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/arrowheadlabs/scrubfs/internal/logging"
)

const schemaVersion = 1

// ErrIntegrityCheckFailed is returned by Open when the sidecar digest does
// not match the database file.
var ErrIntegrityCheckFailed = errors.New("integrity check failed: sidecar digest does not match database file")

// Store is the durable per-file metadata table.
type Store struct {
	dbPath      string
	sidecarPath string
	indexDir    string
	db          *pebble.DB
	log         *logging.Logger

	// Generation is one greater than the maximum generation observed among
	// stored records at Open time, or 1 if the store was empty. It is fixed
	// for the lifetime of the Store.
	Generation uint64
}

type snapshot struct {
	SchemaVersion int
	Records       []Record
}

// Open performs the sidecar integrity check, loads the snapshot (if any)
// into a fresh working index, and computes the current generation.
func Open(dbPath, sidecarPath string, log *logging.Logger) (*Store, error) {
	if err := checkSidecar(dbPath, sidecarPath); err != nil {
		return nil, err
	}

	snap, err := loadSnapshot(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load metadata snapshot")
	}

	if err := removeOrphanedIndexDirs(dbPath); err != nil {
		return nil, errors.Wrap(err, "failed to remove orphaned working index directories")
	}

	indexDir, err := os.MkdirTemp(filepath.Dir(dbPath), ".scrubfs-index-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create working index directory")
	}

	db, err := pebble.Open(indexDir, &pebble.Options{})
	if err != nil {
		os.RemoveAll(indexDir)
		return nil, errors.Wrap(err, "failed to open working index")
	}

	s := &Store{
		dbPath:      dbPath,
		sidecarPath: sidecarPath,
		indexDir:    indexDir,
		db:          db,
		log:         log,
	}

	var maxGeneration uint64
	batch := db.NewBatch()
	for i := range snap.Records {
		r := &snap.Records[i]
		if r.Generation > maxGeneration {
			maxGeneration = r.Generation
		}
		if err := s.putRecord(batch, nil, r); err != nil {
			batch.Close()
			db.Close()
			os.RemoveAll(indexDir)
			return nil, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		db.Close()
		os.RemoveAll(indexDir)
		return nil, errors.Wrap(err, "failed to populate working index")
	}

	if len(snap.Records) == 0 {
		s.Generation = 1
	} else {
		s.Generation = maxGeneration + 1
	}

	return s, nil
}

// removeOrphanedIndexDirs cleans up working index directories left behind by
// a prior run that was killed or crashed before reaching Close, which is the
// only place that normally removes one.
func removeOrphanedIndexDirs(dbPath string) error {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(dbPath), ".scrubfs-index-*"))
	if err != nil {
		return err
	}
	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint flushes the current record set to the snapshot file and
// refreshes the sidecar digest, without closing the working index. Calling
// it periodically during a long run bounds how much progress an unhandled
// crash or kill can erase to whatever was written since the last
// checkpoint, rather than the entire pass.
func (s *Store) Checkpoint() error {
	return s.flush()
}

// Close flushes all records back to the snapshot file, rewrites the sidecar
// digest, and discards the working index.
func (s *Store) Close() error {
	if err := s.flush(); err != nil {
		s.db.Close()
		os.RemoveAll(s.indexDir)
		return err
	}

	if err := s.db.Close(); err != nil {
		os.RemoveAll(s.indexDir)
		return errors.Wrap(err, "failed to close working index")
	}
	os.RemoveAll(s.indexDir)
	return nil
}

func (s *Store) flush() error {
	records, err := s.allRecords()
	if err != nil {
		return errors.Wrap(err, "failed to collect records for snapshot")
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	if err := writeSnapshot(s.dbPath, snapshot{SchemaVersion: schemaVersion, Records: records}); err != nil {
		return errors.Wrap(err, "failed to write metadata snapshot")
	}

	if _, err := os.Stat(s.dbPath); err == nil {
		if err := writeSidecar(s.dbPath, s.sidecarPath); err != nil {
			return errors.Wrap(err, "failed to write sidecar digest")
		}
	}
	return nil
}

func checkSidecar(dbPath, sidecarPath string) error {
	sidecarBytes, err := os.ReadFile(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read sidecar digest")
	}

	digest, err := digestFile(dbPath)
	if err != nil {
		return errors.Wrap(err, "integrity check failed: database file unreadable")
	}
	if string(bytesTrimSpace(sidecarBytes)) != digest {
		return ErrIntegrityCheckFailed
	}
	return nil
}

func writeSidecar(dbPath, sidecarPath string) error {
	digest, err := digestFile(dbPath)
	if err != nil {
		return err
	}
	tmp := sidecarPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(digest), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, sidecarPath)
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 1<<20)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r' || b == '\t'
}

func loadSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{SchemaVersion: schemaVersion}, nil
		}
		return snapshot{}, err
	}
	if len(data) == 0 {
		return snapshot{SchemaVersion: schemaVersion}, nil
	}
	var snap snapshot
	if err := decodeSnapshot(data, &snap); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func writeSnapshot(path string, snap snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) allRecords() ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(recPrefix),
		UpperBound: prefixUpperBound(recPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		r, err := decodeRecord(iter.Value())
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, iter.Error()
}

// ListPaths returns every currently stored record.
func (s *Store) ListPaths() ([]Record, error) {
	return s.allRecords()
}

func time2float(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}
