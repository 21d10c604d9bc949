// Package blockio provides the cache-defeating read and write primitives
// every validation component performs its device I/O through. Writes are
// synced past the OS page cache before they are reported complete; reads
// bypass the cache via direct I/O where the platform allows it and fall
// back to read-after-cache-drop elsewhere.
package blockio

import (
	"context"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/stats"
)

const (
	// direct I/O alignment unit; also the sub-transfer granularity at
	// which in-flight operations observe cancellation
	BlockAlign       = 4096
	subTransferBytes = 1 << 20

	maxTransientRetries = 2
)

// File wraps an open handle on a scratch file of the device under test.
type File struct {
	f      *os.File
	path   string
	direct bool
	logger zerolog.Logger
	set    *FileSet
}

// OpenWrite opens path for writing, creating it if needed. Writes go
// through the page cache and are individually synced; direct write I/O
// is deliberately not used because it constrains every offset and length
// to the platform alignment, which the callers' block sizes need not meet.
func OpenWrite(logger zerolog.Logger, path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, Classify("open", path, err)
	}
	return &File{f: f, path: path, logger: logger}, nil
}

// OpenRead opens path for reading. When direct is requested and the
// platform supports it, reads bypass the OS cache entirely; otherwise the
// caller should DropCache before timing reads, and the measurement carries
// a warm-cache caveat on platforms without either mechanism.
func OpenRead(logger zerolog.Logger, path string, direct bool) (*File, error) {
	if direct {
		if f, ok := openDirectRead(path); ok {
			return &File{f: f, path: path, direct: true, logger: logger}, nil
		}
		logger.Debug().Str("path", path).Msg("direct read unavailable, falling back to cache-drop reads")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Classify("open", path, err)
	}
	setNoCache(f)
	return &File{f: f, path: path, logger: logger}, nil
}

func (f *File) Path() string { return f.path }

// Direct reports whether reads on this handle bypass the OS cache.
func (f *File) Direct() bool { return f.direct }

func (f *File) Close() error {
	f.set.forget(f)
	if err := f.f.Close(); err != nil {
		return Classify("close", f.path, err)
	}
	return nil
}

// WriteBlockAt writes data at the given offset and syncs it to media.
// The transfer proceeds in sub-transfers so cancellation is observed on
// large blocks. Transient failures are retried with exponential backoff;
// fatal kinds are returned immediately.
func (f *File) WriteBlockAt(ctx context.Context, data []byte, offset int64) (int, error) {
	var written int
	op := func() error {
		written = 0
		for written < len(data) {
			if err := ctx.Err(); err != nil {
				return backoff.Permanent(Classify("write", f.path, err))
			}
			end := written + subTransferBytes
			if end > len(data) {
				end = len(data)
			}
			n, err := f.f.WriteAt(data[written:end], offset+int64(written))
			written += n
			if err != nil {
				ioErr := Classify("write", f.path, err)
				if ioErr.Kind.Transient() {
					return ioErr
				}
				return backoff.Permanent(ioErr)
			}
		}
		if err := f.f.Sync(); err != nil {
			return backoff.Permanent(Classify("sync", f.path, err))
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), maxTransientRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return written, err
	}
	stats.BytesWritten.Add(float64(written))
	return written, nil
}

// ReadBlockAt reads len(buf) bytes from offset. A read past the end of
// the file returns the byte count actually available together with a
// ShortTransfer error; bytes beyond the returned count are untouched.
// Reads are not retried: a short read repeats identically on retry.
func (f *File) ReadBlockAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	var read int
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return read, Classify("read", f.path, err)
		}
		end := read + subTransferBytes
		if end > len(buf) {
			end = len(buf)
		}
		n, err := f.f.ReadAt(buf[read:end], offset+int64(read))
		read += n
		if err != nil {
			return read, Classify("read", f.path, err)
		}
	}
	stats.BytesRead.Add(float64(read))
	return read, nil
}

// DropCache asks the OS to forget cached pages of this file so the next
// read hits the medium. Best effort: returns false when the platform has
// no such hint, which callers surface as a measurement caveat.
func (f *File) DropCache() bool {
	return dropFileCache(f.f)
}

func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	return bo
}
