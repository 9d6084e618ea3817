//go:build !unix

package resource

// PeakRSS is not available on this platform and always returns 0.
func PeakRSS() int64 { return 0 }
