//go:build !linux

package storage

// adviseRandom is a no-op where madvise is unavailable.
func adviseRandom(data []byte) {}
