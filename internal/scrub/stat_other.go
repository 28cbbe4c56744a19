//go:build !linux

package scrub

import (
	"io/fs"
	"os"
)

// statTriple falls back to mtime-only precision on platforms without a
// Linux-style ctime field; ctime tracking (and therefore the "legitimate
// change vs. bitrot" distinction) degrades to mtime alone.
func statTriple(f *os.File) (size int64, ctime, mtime float64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, 0, err
	}
	seconds := float64(info.ModTime().UnixNano()) / 1e9
	return info.Size(), seconds, seconds, nil
}

// entryMetadata is the non-Linux fallback; see stat_linux.go.
func entryMetadata(info fs.FileInfo) (size int64, ctime, mtime float64) {
	seconds := float64(info.ModTime().UnixNano()) / 1e9
	return info.Size(), seconds, seconds
}
