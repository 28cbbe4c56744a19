package store

import (
	"math"
	"os"
	"time"

	"github.com/cockroachdb/pebble"
)

// MetadataCheck inserts a fresh record on first observation, or else
// recomputes dirtiness from the newly observed size/mtime against the
// previously recorded values, bumping the record to the current generation
// either way.
func (s *Store) MetadataCheck(path string, size int64, mtime, ctime float64) (bool, error) {
	existing, err := s.getRecord(path)
	if err != nil {
		return false, err
	}
	if existing == nil {
		rec := &Record{Path: path, Generation: s.Generation, Size: size, Mtime: mtime, Ctime: ctime}
		return false, s.putRecord(s.db, nil, rec)
	}

	prev := *existing
	dirty := existing.Dirty || size != existing.Size || math.Abs(mtime-existing.Mtime) > 1
	newCtime := ctime
	if !dirty {
		// A spurious ctime bump alone must not mark the file dirty; preserve
		// the stored ctime.
		newCtime = existing.Ctime
	}

	existing.Generation = s.Generation
	existing.Ctime = newCtime
	existing.Clean = false
	existing.Dirty = dirty

	if err := s.putRecord(s.db, &prev, existing); err != nil {
		return false, err
	}
	return dirty, nil
}

// MetadataClean deletes every record whose generation is less than the
// current one. Run exactly once, after the walker is exhausted.
func (s *Store) MetadataClean() error {
	records, err := s.allRecords()
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for i := range records {
		r := &records[i]
		if r.Generation < s.Generation {
			if err := s.deleteRecord(batch, r); err != nil {
				return err
			}
		}
	}
	return batch.Commit(pebble.Sync)
}

// DropFile removes the record for path, if it exists at the current
// generation.
func (s *Store) DropFile(path string) error {
	existing, err := s.getRecord(path)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return s.dropRecord(existing)
}

func (s *Store) dropRecord(rec *Record) error {
	if rec.Generation != s.Generation {
		return nil
	}
	return s.deleteRecord(s.db, rec)
}

// GetFileToScrub selects and opens the next candidate file to hash, using
// three-tier priority (unhashed, then dirty, then not clean) and a
// two-probe cooldown retry: the first pass only considers records past no
// cooldown at all, the second allows records whose skip cooldown has
// elapsed. It returns (nil, nil, nil) when there is nothing left to scrub.
// If a candidate's file can't be opened, its record is dropped and selection
// retries automatically.
func (s *Store) GetFileToScrub(skipFor time.Duration) (*os.File, *Record, error) {
	now := time.Now()
	for _, skipUntil := range [2]time.Time{{}, now.Add(-skipFor)} {
		for {
			rec, err := s.nextCandidate(skipUntil)
			if err != nil {
				return nil, nil, err
			}
			if rec == nil {
				break
			}

			f, err := os.Open(rec.Path)
			if err != nil {
				s.log.Warn("failed to open scanned path, dropping it: %s: %v", rec.Path, err)
				if derr := s.dropRecord(rec); derr != nil {
					return nil, nil, derr
				}
				continue
			}
			return f, rec, nil
		}
	}
	return nil, nil, nil
}

func (s *Store) nextCandidate(skipUntil time.Time) (*Record, error) {
	for _, tier := range [3]int{tierUnhashed, tierDirty, tierUnclean} {
		rec, err := s.scanTier(tier, skipUntil)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *Store) scanTier(tier int, skipUntil time.Time) (*Record, error) {
	prefix := string(idxGenerationPrefix(tier, s.Generation))
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := s.getRecord(string(iter.Value()))
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		if rec.LastSkip.IsZero() || rec.LastSkip.Before(skipUntil) {
			return rec, nil
		}
	}
	return nil, iter.Error()
}

// PersistSkip records that hashing path was aborted because the file
// mutated mid-read.
func (s *Store) PersistSkip(path string, when time.Time) error {
	rec, err := s.getRecord(path)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	prev := *rec
	rec.Dirty = true
	rec.LastSkip = when
	return s.putRecord(s.db, &prev, rec)
}

// PersistScrub records a completed hash: the freshly observed metadata and
// checksum, clean=true, dirty=false, and a cleared skip cooldown.
func (s *Store) PersistScrub(path string, size int64, mtime, ctime float64, checksum []byte, when time.Time) error {
	rec, err := s.getRecord(path)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	prev := *rec
	rec.Dirty = false
	rec.Clean = true
	rec.Size = size
	rec.Mtime = mtime
	rec.Ctime = ctime
	rec.Checksum = checksum
	rec.LastScrub = when
	rec.LastSkip = time.Time{}
	return s.putRecord(s.db, &prev, rec)
}
