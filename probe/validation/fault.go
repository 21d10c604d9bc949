package validation

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/blockio"
)

const (
	faultFileSize = 64 * 1024
	shortReadFile = 4 * 1024
	shortReadAsk  = 16 * 1024
	sentinel      = 0xEE
)

// Fault injects abnormal conditions against disposable files and checks
// that the filesystem and the error classification behave sanely.
// Scenarios are independent; one that cannot be simulated in this
// environment is reported skipped, which counts neither as pass nor fail.
type Fault struct {
	logger zerolog.Logger
	cfg    Config
	dir    string
	files  *blockio.FileSet
}

func NewFault(logger zerolog.Logger, cfg Config, scratchDir string) *Fault {
	return &Fault{
		logger: logger.With().Str("test", string(KindFault)).Logger(),
		cfg:    cfg,
		dir:    scratchDir,
	}
}

func (f *Fault) Run(ctx context.Context) (*Result, error) {
	res := newResult(KindFault)

	for _, scenario := range f.cfg.FaultScenarios {
		var rec *FailureRecord
		var skipped bool
		var err error

		switch scenario {
		case TruncatedWrite:
			rec, err = f.truncatedWrite(ctx)
		case ShortRead:
			rec, err = f.shortRead(ctx)
		case SimulatedDisconnect:
			rec, skipped, err = f.simulatedDisconnect(ctx)
		default:
			f.logger.Warn().Str("scenario", string(scenario)).Msg("fault scenario not supported, skipping")
			skipped = true
		}

		if err != nil {
			// scenario setup hit the device itself
			if blockio.IsDeviceRemoved(err) {
				return res.finalize(), err
			}
			res.fail(ioFailure(string(scenario), err))
			continue
		}
		switch {
		case skipped:
			res.skip()
		case rec != nil:
			res.fail(*rec)
		default:
			res.pass()
		}
	}
	return res.finalize(), nil
}

// truncatedWrite stops a write after a prefix and checks the file landed
// in a defined state: the prefix, nothing, or (after filesystem-level
// buffering) the full intended length. Anything else is an undefined
// partial state.
func (f *Fault) truncatedWrite(ctx context.Context) (*FailureRecord, error) {
	path := filepath.Join(f.dir, "fault_truncated.dat")
	defer os.Remove(path)

	intended := faultFileSize
	prefix := intended / 3

	data := bytes.Repeat([]byte{0xA5}, prefix)
	wf, err := f.files.OpenWrite(f.logger, path)
	if err != nil {
		return nil, err
	}
	// write only the prefix of the intended transfer, then abandon it
	if _, err := wf.WriteBlockAt(ctx, data, 0); err != nil {
		wf.Close()
		return nil, err
	}
	if err := wf.Close(); err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, blockio.Classify("stat", path, err)
	}
	switch fi.Size() {
	case int64(prefix), 0, int64(intended):
		return nil, nil
	}
	return &FailureRecord{
		Scenario: string(TruncatedWrite),
		Expected: fmt.Sprintf("file length in {0, %d, %d}", prefix, intended),
		Actual:   fmt.Sprintf("%d bytes", fi.Size()),
		Detail:   "undefined partial state after interrupted write",
	}, nil
}

// shortRead asks for more bytes than the file holds and checks the
// observed length equals the file's actual size, with no garbage padding
// beyond it.
func (f *Fault) shortRead(ctx context.Context) (*FailureRecord, error) {
	path := filepath.Join(f.dir, "fault_short_read.dat")
	defer os.Remove(path)

	data := bytes.Repeat([]byte{0x5A}, shortReadFile)
	wf, err := f.files.OpenWrite(f.logger, path)
	if err != nil {
		return nil, err
	}
	if _, err := wf.WriteBlockAt(ctx, data, 0); err != nil {
		wf.Close()
		return nil, err
	}
	if err := wf.Close(); err != nil {
		return nil, err
	}

	rf, err := f.files.OpenRead(f.logger, path, false)
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	buf := bytes.Repeat([]byte{sentinel}, shortReadAsk)
	n, readErr := rf.ReadBlockAt(ctx, buf, 0)
	if readErr != nil {
		if kind, _ := blockio.KindOf(readErr); kind != blockio.ShortTransfer {
			return nil, readErr
		}
	}

	if n != shortReadFile {
		return &FailureRecord{
			Scenario: string(ShortRead),
			Expected: fmt.Sprintf("%d bytes (actual file size)", shortReadFile),
			Actual:   fmt.Sprintf("%d bytes", n),
		}, nil
	}
	for i := n; i < len(buf); i++ {
		if buf[i] != sentinel {
			return &FailureRecord{
				Scenario: string(ShortRead),
				Expected: "bytes past EOF untouched",
				Actual:   fmt.Sprintf("garbage at offset %d", i),
			}, nil
		}
	}
	return nil, nil
}

// simulatedDisconnect completes a write, then yanks the backing file out
// from under the path and checks the next operation is classified as
// DeviceRemoved rather than silently treated as success.
func (f *Fault) simulatedDisconnect(ctx context.Context) (rec *FailureRecord, skipped bool, err error) {
	path := filepath.Join(f.dir, "fault_disconnect.dat")
	defer os.Remove(path)

	data := bytes.Repeat([]byte{0xC3}, shortReadFile)
	wf, werr := f.files.OpenWrite(f.logger, path)
	if werr != nil {
		return nil, false, werr
	}
	if _, werr := wf.WriteBlockAt(ctx, data, 0); werr != nil {
		wf.Close()
		return nil, false, werr
	}
	if werr := wf.Close(); werr != nil {
		return nil, false, werr
	}

	// simulate the medium vanishing between operations
	if rmErr := os.Remove(path); rmErr != nil {
		f.logger.Warn().Err(rmErr).Msg("cannot simulate disconnect on this platform, skipping")
		return nil, true, nil
	}

	rf, openErr := f.files.OpenRead(f.logger, path, false)
	if openErr == nil {
		rf.Close()
		return &FailureRecord{
			Scenario: string(SimulatedDisconnect),
			Expected: "device_removed error",
			Actual:   "operation succeeded",
			Detail:   "post-disconnect read silently passed",
		}, false, nil
	}
	if kind, _ := blockio.KindOf(openErr); kind != blockio.DeviceRemoved {
		return &FailureRecord{
			Scenario: string(SimulatedDisconnect),
			Expected: "device_removed error",
			Actual:   kind.String(),
			Detail:   openErr.Error(),
		}, false, nil
	}
	return nil, false, nil
}
