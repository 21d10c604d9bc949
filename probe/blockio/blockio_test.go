package blockio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.dat")
	data := make([]byte, 128*1024)
	rand.New(rand.NewSource(1)).Read(data)

	wf, err := OpenWrite(testLogger(), path)
	require.NoError(t, err)
	n, err := wf.WriteBlockAt(context.Background(), data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, wf.Close())

	rf, err := OpenRead(testLogger(), path, false)
	require.NoError(t, err)
	defer rf.Close()
	rf.DropCache()

	buf := make([]byte, len(data))
	n, err = rf.ReadBlockAt(context.Background(), buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	assert.True(t, bytes.Equal(data, buf))
}

func TestWriteBlockAtOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offset.dat")
	wf, err := OpenWrite(testLogger(), path)
	require.NoError(t, err)
	defer wf.Close()

	_, err = wf.WriteBlockAt(context.Background(), []byte("abcd"), 4096)
	require.NoError(t, err)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4100), fi.Size())
}

func TestReadPastEOFIsShortTransfer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.dat")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x5A}, 4096), 0644))

	rf, err := OpenRead(testLogger(), path, false)
	require.NoError(t, err)
	defer rf.Close()

	buf := make([]byte, 16384)
	n, err := rf.ReadBlockAt(context.Background(), buf, 0)
	assert.Equal(t, 4096, n)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ShortTransfer, kind)
}

func TestWriteCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancel.dat")
	wf, err := OpenWrite(testLogger(), path)
	require.NoError(t, err)
	defer wf.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = wf.WriteBlockAt(ctx, []byte("data"), 0)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, Timeout, kind)
}

func TestOpenMissingFileIsDeviceRemoved(t *testing.T) {
	_, err := OpenRead(testLogger(), filepath.Join(t.TempDir(), "gone.dat"), false)
	require.Error(t, err)
	assert.True(t, IsDeviceRemoved(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, Timeout},
		{"cancelled", context.Canceled, Timeout},
		{"not exist", fs.ErrNotExist, DeviceRemoved},
		{"enodev", syscall.ENODEV, DeviceRemoved},
		{"enxio", syscall.ENXIO, DeviceRemoved},
		{"eio", syscall.EIO, DeviceRemoved},
		{"permission", fs.ErrPermission, PermissionDenied},
		{"eacces wrapped", &os.PathError{Op: "open", Path: "x", Err: syscall.EACCES}, PermissionDenied},
		{"short write", io.ErrShortWrite, ShortTransfer},
		{"eof", io.EOF, ShortTransfer},
		{"unexpected eof", io.ErrUnexpectedEOF, ShortTransfer},
		{"other", errors.New("weird"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ioErr := Classify("op", "path", tt.err)
			assert.Equal(t, tt.want, ioErr.Kind)
			assert.True(t, errors.Is(ioErr, tt.err), "classified error must unwrap to the cause")
		})
	}
}

func TestKindTransient(t *testing.T) {
	assert.True(t, Timeout.Transient())
	assert.True(t, ShortTransfer.Transient())
	assert.False(t, DeviceRemoved.Transient())
	assert.False(t, PermissionDenied.Transient())
	assert.False(t, Unknown.Transient())
}

func TestAlignedBuffer(t *testing.T) {
	buf := AlignedBuffer(8192)
	assert.Len(t, buf, 8192)
}
