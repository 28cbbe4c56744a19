//go:build linux

// Package fadvise provides an optional hint to the kernel that pages read
// during a scrub pass can be evicted immediately, so a large scrub does not
// displace the page cache's working set. This is purely an optimization and
// carries no correctness requirement.
package fadvise

import (
	"os"

	"golang.org/x/sys/unix"
)

// DontNeed advises the kernel that the full contents of f are not needed in
// the page cache going forward. Errors are deliberately ignored by callers:
// this is best-effort only.
func DontNeed(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}
