package blockio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/driveprobe/driveprobe/probe/stats"
)

type Kind int

const (
	Unknown Kind = iota
	Timeout
	PermissionDenied
	DeviceRemoved
	ShortTransfer
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case PermissionDenied:
		return "permission_denied"
	case DeviceRemoved:
		return "device_removed"
	case ShortTransfer:
		return "short_transfer"
	default:
		return "unknown"
	}
}

// Transient reports whether a failed transfer of this kind is worth
// retrying on the same handle. DeviceRemoved and PermissionDenied are
// fatal for the device: further I/O cannot succeed.
func (k Kind) Transient() bool {
	return k == Timeout || k == ShortTransfer
}

// IOError is the classified form of every error escaping this package.
type IOError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Classify maps an underlying error onto the IOError taxonomy.
// A removable medium that disappears mid-run surfaces as ENOENT, ENODEV,
// ENXIO or EIO depending on platform and filesystem, all of which mean
// the same thing to the caller: stop talking to this device.
func Classify(op, path string, err error) *IOError {
	kind := Unknown
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, os.ErrDeadlineExceeded):
		kind = Timeout
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, syscall.ENODEV),
		errors.Is(err, syscall.ENXIO),
		errors.Is(err, syscall.EIO):
		kind = DeviceRemoved
	case errors.Is(err, fs.ErrPermission):
		kind = PermissionDenied
	case errors.Is(err, io.ErrShortWrite),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		kind = ShortTransfer
	}
	stats.IOErrorCounter.WithLabelValues(kind.String()).Inc()
	return &IOError{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf extracts the classified kind from an error chain, Unknown plus
// false when the chain carries no IOError.
func KindOf(err error) (Kind, bool) {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ioErr.Kind, true
	}
	return Unknown, false
}

// IsDeviceRemoved reports whether err means the device under test is gone.
func IsDeviceRemoved(err error) bool {
	k, ok := KindOf(err)
	return ok && k == DeviceRemoved
}
