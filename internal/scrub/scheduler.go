package scrub

import (
	"hash"
	"time"

	"github.com/arrowheadlabs/scrubfs/internal/logging"
	"github.com/arrowheadlabs/scrubfs/internal/ratelimit"
	"github.com/arrowheadlabs/scrubfs/internal/store"
	"github.com/arrowheadlabs/scrubfs/internal/walk"
)

// Config carries everything the scheduler needs beyond the store and
// walker.
type Config struct {
	SkipFor   time.Duration
	BlockSize int
	ScanOnly  bool
	ScanLimit *ratelimit.Bucket
	ReadLimit *ratelimit.Bucket
	NewHash   func() hash.Hash

	// CheckpointInterval, if positive, periodically flushes the metadata
	// store's snapshot and sidecar digest mid-run without closing its
	// working index, bounding how much an unhandled crash can erase. Zero
	// disables periodic checkpointing; the store is then persisted only by
	// the abort checkpoint on a closed stop channel and by the final Close.
	CheckpointInterval time.Duration
}

// DefaultCheckpointInterval is the checkpoint cadence the scrub command
// passes in. The scheduler applies no default of its own: a zero
// CheckpointInterval disables periodic checkpointing.
const DefaultCheckpointInterval = 30 * time.Second

// state names the scheduler's explicit states: the interleaved scan/read
// loops are realized as a single loop with a switch on state, rather than
// separate goroutines or nested callbacks.
type state int

const (
	stateWalkTick state = iota
	stateReadTick
	stateSleepScan
	stateSleepRead
	stateDrain
	stateDone
)

// Scheduler interleaves walker-driven metadata updates with node-driven
// hashing under two independent rate limits.
type Scheduler struct {
	walker *walk.Walker
	store  *store.Store
	cfg    Config
	log    *logging.Logger

	tsScan time.Time
	tsRead time.Time
	node   *Node

	// pendingReadSleep is the delay computed by readTick for the
	// "read-gated, below scan deadline" wait, carried across into
	// stateSleepRead since the read bucket has already been charged by the
	// time the decision to sleep is made.
	pendingReadSleep time.Duration

	lastCheckpoint time.Time
}

// New constructs a scheduler. tsScan and tsRead both start at the zero
// time, which is already in the past, so the first iteration never waits.
func New(walker *walk.Walker, st *store.Store, cfg Config, log *logging.Logger) *Scheduler {
	return &Scheduler{walker: walker, store: st, cfg: cfg, log: log}
}

// Run drives the scheduler to completion: it walks every root, interleaving
// scanning and (unless ScanOnly) hashing, then cleans stale records and
// drains any remaining candidates.
//
// If stop is closed, Run abandons the in-progress file (if any) and returns
// after flushing a final checkpoint, rather than continuing to completion.
// A nil stop channel is fine: a nil channel is never ready, so Run always
// runs to completion.
func (s *Scheduler) Run(stop <-chan struct{}) error {
	st := stateWalkTick
	s.lastCheckpoint = time.Now()
	for {
		select {
		case <-stop:
			return s.abort()
		default:
		}

		var err error
		st, err = s.step(st)
		if err != nil {
			return err
		}
		if st == stateDone {
			if s.node != nil {
				s.node.Close()
			}
			return nil
		}

		if err := s.maybeCheckpoint(); err != nil {
			return err
		}
	}
}

// abort ends the run early in response to a closed stop channel: the
// in-progress file is dropped (its record is left exactly as it was before
// this file was opened, so the next run picks it back up), and a final
// checkpoint captures everything completed so far.
func (s *Scheduler) abort() error {
	if s.node != nil {
		s.node.Close()
		s.node = nil
	}
	return s.store.Checkpoint()
}

func (s *Scheduler) maybeCheckpoint() error {
	if s.cfg.CheckpointInterval <= 0 {
		return nil
	}
	if time.Since(s.lastCheckpoint) < s.cfg.CheckpointInterval {
		return nil
	}
	if err := s.store.Checkpoint(); err != nil {
		return err
	}
	s.lastCheckpoint = time.Now()
	return nil
}

func (s *Scheduler) step(current state) (state, error) {
	switch current {
	case stateWalkTick:
		return s.walkTick()
	case stateReadTick:
		return s.readTick()
	case stateSleepScan:
		return s.sleepScan()
	case stateSleepRead:
		return s.sleepRead()
	case stateDrain:
		return s.drain()
	default:
		return stateDone, nil
	}
}

func (s *Scheduler) walkTick() (state, error) {
	entry, ok := s.walker.Next()
	if !ok {
		return stateDrain, nil
	}

	size, ctime, mtime := entryMetadata(entry.Info)
	if _, err := s.store.MetadataCheck(entry.Path, size, mtime, ctime); err != nil {
		return stateDone, err
	}

	if s.cfg.ScanOnly || s.cfg.ScanLimit == nil {
		return stateWalkTick, nil
	}

	delay := s.cfg.ScanLimit.Charge(1)
	if delay == 0 {
		return stateWalkTick, nil
	}
	s.tsScan = time.Now().Add(delay)
	return stateReadTick, nil
}

func (s *Scheduler) readTick() (state, error) {
	if !time.Now().Before(s.tsScan) {
		return stateWalkTick, nil
	}

	if s.node == nil {
		f, rec, err := s.store.GetFileToScrub(s.cfg.SkipFor)
		if err != nil {
			return stateDone, err
		}
		if f != nil {
			node, err := NewNode(s.store, s.log, f, rec, s.cfg.NewHash)
			if err != nil {
				return stateDone, err
			}
			s.node = node
		}
	}

	if s.node == nil || s.tsScan.Before(s.tsRead) {
		return stateSleepScan, nil
	}

	consumed, err := s.node.Read(s.cfg.BlockSize)
	if err != nil {
		return stateDone, err
	}
	if consumed == 0 {
		s.node.Close()
		s.node = nil
	}

	if s.cfg.ReadLimit == nil {
		return stateReadTick, nil
	}
	delay := s.cfg.ReadLimit.Charge(float64(consumed))
	if delay <= 0 {
		return stateReadTick, nil
	}

	now := time.Now()
	if !now.Add(delay).Before(s.tsScan) {
		// Scan's deadline is nearer; defer the read wait and let the walker
		// run.
		s.tsRead = now.Add(delay)
		return stateWalkTick, nil
	}
	s.pendingReadSleep = delay
	return stateSleepRead, nil
}

func (s *Scheduler) sleepScan() (state, error) {
	delay := time.Until(s.tsScan)
	if delay > 0 {
		s.log.Debug("Rate-limiting delay (scan): %s", delay)
		time.Sleep(delay)
	}
	return stateWalkTick, nil
}

func (s *Scheduler) sleepRead() (state, error) {
	if s.pendingReadSleep > 0 {
		s.log.Debug("Rate-limiting delay (read): %s", s.pendingReadSleep)
		time.Sleep(s.pendingReadSleep)
	}
	s.pendingReadSleep = 0
	return stateReadTick, nil
}

func (s *Scheduler) drain() (state, error) {
	if err := s.store.MetadataClean(); err != nil {
		return stateDone, err
	}
	if s.cfg.ScanOnly {
		return stateDone, nil
	}

	for {
		if s.node == nil {
			f, rec, err := s.store.GetFileToScrub(s.cfg.SkipFor)
			if err != nil {
				return stateDone, err
			}
			if f == nil {
				return stateDone, nil
			}
			node, err := NewNode(s.store, s.log, f, rec, s.cfg.NewHash)
			if err != nil {
				return stateDone, err
			}
			s.node = node
		}

		consumed, err := s.node.Read(s.cfg.BlockSize)
		if err != nil {
			return stateDone, err
		}
		if consumed == 0 {
			s.node.Close()
			s.node = nil
		}

		if s.cfg.ReadLimit != nil {
			if delay := s.cfg.ReadLimit.Charge(float64(consumed)); delay > 0 {
				s.log.Debug("Rate-limiting delay (read): %s", delay)
				time.Sleep(delay)
			}
		}
	}
}
