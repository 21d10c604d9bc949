//go:build linux

package blockio

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func openDirectRead(path string) (*os.File, bool) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECT, 0)
	if err != nil {
		return nil, false
	}
	return os.NewFile(uintptr(fd), path), true
}

func setNoCache(f *os.File) bool {
	// Linux uses O_DIRECT at open time instead; see dropFileCache.
	return false
}

func dropFileCache(f *os.File) bool {
	if err := f.Sync(); err != nil {
		return false
	}
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED) == nil
}

// AlignedBuffer returns a buffer whose base address is aligned to
// BlockAlign, as O_DIRECT transfers require.
func AlignedBuffer(size int) []byte {
	buf := make([]byte, size+BlockAlign)
	off := 0
	if rem := uintptr(unsafe.Pointer(&buf[0])) % BlockAlign; rem != 0 {
		off = int(BlockAlign - rem)
	}
	return buf[off : off+size]
}
