package store

import (
	"bytes"
	"encoding/gob"
	"time"
)

// Record is the persisted state for a single path. Zero-value LastScrub /
// LastSkip mean "absent".
type Record struct {
	Path       string
	Generation uint64
	Size       int64
	Mtime      float64
	Ctime      float64
	Checksum   []byte
	Clean      bool
	Dirty      bool
	LastScrub  time.Time
	LastSkip   time.Time
}

func (r *Record) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// candidateTier classifies a record into one of the three priority tiers
// used when selecting the next file to scrub, or -1 if it isn't a candidate
// at all under the current generation.
func (r *Record) candidateTier(generation uint64) int {
	if r.Generation != generation {
		return -1
	}
	switch {
	case r.Checksum == nil:
		return tierUnhashed
	case r.Dirty:
		return tierDirty
	case !r.Clean:
		return tierUnclean
	default:
		return -1
	}
}

const (
	tierUnhashed = iota
	tierDirty
	tierUnclean
)

func encodeSnapshot(snap snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte, snap *snapshot) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(snap)
}
