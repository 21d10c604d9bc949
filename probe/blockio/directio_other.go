//go:build !linux && !darwin

package blockio

import "os"

func openDirectRead(path string) (*os.File, bool) {
	return nil, false
}

func setNoCache(f *os.File) bool {
	return false
}

func dropFileCache(f *os.File) bool {
	return f.Sync() == nil
}

func AlignedBuffer(size int) []byte {
	return make([]byte, size)
}
