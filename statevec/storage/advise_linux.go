//go:build linux

package storage

import "golang.org/x/sys/unix"

// adviseRandom hints the kernel that slot access is random, so readahead on
// the mapped region is not worth the page cache churn.
func adviseRandom(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_RANDOM)
}
