package store

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Key layout within the working pebble index:
//
//	rec/<path>                                         -> gob-encoded Record
//	idx/<tier>/<generation>/<last_scrub>/<path>         -> <path>
//
// The secondary index keys sort lexicographically by (tier-implicit
// prefix, generation, last_scrub, path), which is exactly the iteration
// order get_file_to_scrub needs: fixed generation, ascending last_scrub,
// tie-broken by path. last_scrub and generation are zero-padded decimal so
// lexicographic order matches numeric order.
const recPrefix = "rec/"

func recKey(path string) []byte {
	return []byte(recPrefix + path)
}

func idxPrefix(tier int) string {
	return fmt.Sprintf("idx/%d/", tier)
}

func idxKey(tier int, generation uint64, lastScrub float64, path string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d/%s", idxPrefix(tier), generation, int64(lastScrub*1e9), path))
}

func idxGenerationPrefix(tier int, generation uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d/", idxPrefix(tier), generation))
}

// prefixUpperBound returns the smallest key strictly greater than every key
// with the given prefix, suitable as a pebble IterOptions.UpperBound.
func prefixUpperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			upper := make([]byte, i+1)
			copy(upper, b[:i+1])
			upper[i]++
			return upper
		}
	}
	return nil
}

// putRecord writes (or rewrites) a record and its secondary index entry. If
// prev is non-nil, its stale index entry is removed first. writer may be a
// *pebble.Batch or the *pebble.DB itself.
func (s *Store) putRecord(writer pebble.Writer, prev *Record, r *Record) error {
	if prev != nil {
		if tier := prev.candidateTier(prev.Generation); tier != -1 {
			if err := writer.Delete(idxKey(tier, prev.Generation, time2float(prev.LastScrub), prev.Path), nil); err != nil {
				return err
			}
		}
	}

	data, err := r.encode()
	if err != nil {
		return err
	}
	if err := writer.Set(recKey(r.Path), data, nil); err != nil {
		return err
	}

	if tier := r.candidateTier(r.Generation); tier != -1 {
		if err := writer.Set(idxKey(tier, r.Generation, time2float(r.LastScrub), r.Path), []byte(r.Path), nil); err != nil {
			return err
		}
	}
	return nil
}

// deleteRecord removes a record and its secondary index entry, if any.
func (s *Store) deleteRecord(writer pebble.Writer, r *Record) error {
	if tier := r.candidateTier(r.Generation); tier != -1 {
		if err := writer.Delete(idxKey(tier, r.Generation, time2float(r.LastScrub), r.Path), nil); err != nil {
			return err
		}
	}
	return writer.Delete(recKey(r.Path), nil)
}

func (s *Store) getRecord(path string) (*Record, error) {
	value, closer, err := s.db.Get(recKey(path))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()
	return decodeRecord(value)
}
