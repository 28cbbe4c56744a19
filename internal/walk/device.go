//go:build unix

package walk

import "syscall"

// deviceID extracts the device identifier of a stat result, used for
// cross-device traversal decisions. Only meaningful on POSIX platforms,
// which is the only target this scrubber supports (spec: "a POSIX
// filesystem").
func deviceID(sys interface{}) (uint64, bool) {
	stat, ok := sys.(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Dev), true
}
