//go:build linux

package scrub

import (
	"io/fs"
	"os"
	"syscall"
)

// statTriple returns (size, ctime, mtime) as fractional seconds since the
// epoch, the same triple the file-scrub node compares before and after each
// read to detect mid-read mutation.
func statTriple(f *os.File) (size int64, ctime, mtime float64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, 0, err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.Size(), 0, float64(info.ModTime().UnixNano()) / 1e9, nil
	}
	ctime = float64(stat.Ctim.Sec) + float64(stat.Ctim.Nsec)/1e9
	mtime = float64(stat.Mtim.Sec) + float64(stat.Mtim.Nsec)/1e9
	return info.Size(), ctime, mtime, nil
}

// entryMetadata extracts the (size, ctime, mtime) triple the walker reports
// for a freshly stat'd directory entry, used as input to MetadataCheck.
func entryMetadata(info fs.FileInfo) (size int64, ctime, mtime float64) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		seconds := float64(info.ModTime().UnixNano()) / 1e9
		return info.Size(), seconds, seconds
	}
	ctime = float64(stat.Ctim.Sec) + float64(stat.Ctim.Nsec)/1e9
	mtime = float64(stat.Mtim.Sec) + float64(stat.Mtim.Nsec)/1e9
	return info.Size(), ctime, mtime
}
