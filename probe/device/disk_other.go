//go:build !linux && !darwin && !windows

package device

import "errors"

var errNotSupported = errors.New("volume information not supported on this platform")

func fillDiskStatus(t *Target) error {
	t.Filesystem = "unknown"
	return nil
}

func List() ([]*Info, error) {
	return nil, errNotSupported
}
