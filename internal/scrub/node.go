// Package scrub implements the file-scrub state machine and the scheduler
// that drives it.
package scrub

import (
	"bytes"
	"hash"
	"io"
	"math"
	"os"
	"time"

	"github.com/arrowheadlabs/scrubfs/internal/fadvise"
	"github.com/arrowheadlabs/scrubfs/internal/logging"
	"github.com/arrowheadlabs/scrubfs/internal/store"
)

// Node holds the streaming state for a single file being scrubbed: the open
// handle, the snapshot of its stored record, the metadata captured when
// streaming began, and the incremental digest accumulator.
type Node struct {
	st   *store.Store
	log  *logging.Logger
	file *os.File
	path string

	prevChecksum []byte
	prevCtime    float64
	prevMtime    float64

	initSize  int64
	initCtime float64
	initMtime float64

	digest hash.Hash
}

// NewNode begins streaming rec's file. The handle is expected already open:
// the metadata store opens the file before constructing a node, dropping
// the record and retrying if the open fails.
func NewNode(st *store.Store, log *logging.Logger, file *os.File, rec *store.Record, newHash func() hash.Hash) (*Node, error) {
	size, ctime, mtime, err := statTriple(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &Node{
		st:           st,
		log:          log,
		file:         file,
		path:         rec.Path,
		prevChecksum: rec.Checksum,
		prevCtime:    rec.Ctime,
		prevMtime:    rec.Mtime,
		initSize:     size,
		initCtime:    ctime,
		initMtime:    mtime,
		digest:       newHash(),
	}, nil
}

// Read performs one streaming step: it reads up to blockSize bytes,
// re-stats the handle to detect mid-read mutation, feeds any bytes read to
// the digest, and on EOF finalizes and persists the result. It returns the
// number of content bytes consumed (0 signals the node is finished, whether
// by completion or by mid-read abandonment).
func (n *Node) Read(blockSize int) (int, error) {
	buf := make([]byte, blockSize)
	read, readErr := n.file.Read(buf)

	size, ctime, mtime, statErr := statTriple(n.file)
	if statErr != nil {
		return 0, statErr
	}
	if size != n.initSize || ctime != n.initCtime || mtime != n.initMtime {
		// The file mutated while being hashed; abandon the partial digest.
		if err := n.st.PersistSkip(n.path, time.Now()); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if read > 0 {
		n.digest.Write(buf[:read])
		return read, nil
	}
	if readErr != nil && readErr != io.EOF {
		return 0, readErr
	}

	digest := n.digest.Sum(nil)
	if n.prevChecksum != nil && !bytes.Equal(n.prevChecksum, digest) {
		delta := math.Max(math.Abs(n.initCtime-n.prevCtime), math.Abs(n.initMtime-n.prevMtime))
		if delta >= 1 {
			n.log.Info("change in file contents and ctime: %s", n.path)
		} else {
			n.log.Error("unmarked changes: %s", n.path)
		}
	}

	if err := n.st.PersistScrub(n.path, n.initSize, n.initMtime, n.initCtime, digest, time.Now()); err != nil {
		return 0, err
	}
	fadvise.DontNeed(n.file)
	return 0, nil
}

// Close releases the underlying handle. It is idempotent.
func (n *Node) Close() error {
	if n.file == nil {
		return nil
	}
	err := n.file.Close()
	n.file = nil
	return err
}
