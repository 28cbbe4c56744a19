//go:build !linux

package fadvise

import "os"

// DontNeed is a no-op on platforms without POSIX_FADV_DONTNEED.
func DontNeed(f *os.File) error {
	return nil
}
