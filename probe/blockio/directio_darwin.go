//go:build darwin

package blockio

import (
	"os"

	"golang.org/x/sys/unix"
)

func openDirectRead(path string) (*os.File, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	if !setNoCache(f) {
		f.Close()
		return nil, false
	}
	return f, true
}

func setNoCache(f *os.File) bool {
	_, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1)
	return err == nil
}

func dropFileCache(f *os.File) bool {
	if err := f.Sync(); err != nil {
		return false
	}
	return setNoCache(f)
}

// AlignedBuffer returns a buffer of the requested size. F_NOCACHE has no
// alignment requirement, unlike O_DIRECT.
func AlignedBuffer(size int) []byte {
	return make([]byte, size)
}
