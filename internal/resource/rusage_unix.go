//go:build unix

package resource

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PeakRSS returns the peak resident set size of the process in bytes,
// or 0 if it cannot be determined.
func PeakRSS() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	// Maxrss is reported in bytes on darwin and kilobytes elsewhere.
	if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
		return int64(ru.Maxrss)
	}
	return int64(ru.Maxrss) * 1024
}
