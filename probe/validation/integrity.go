package validation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/blockio"
	"github.com/driveprobe/driveprobe/probe/checksum"
)

// Integrity writes seeded pseudo-random content and verifies it
// round-trips bit for bit. A digest mismatch is the primary signal this
// component exists to produce: it is recorded as a failure, never raised
// as an error. Trials are independent so a clean read at one offset
// cannot mask corruption at another.
type Integrity struct {
	logger zerolog.Logger
	cfg    Config
	dir    string
	files  *blockio.FileSet

	// corrupt, when set, mutates the written file before read-back.
	// Used to exercise the mismatch path.
	corrupt func(trial int, path string) error
}

func NewIntegrity(logger zerolog.Logger, cfg Config, scratchDir string) *Integrity {
	return &Integrity{
		logger: logger.With().Str("test", string(KindIntegrity)).Logger(),
		cfg:    cfg,
		dir:    scratchDir,
	}
}

func (v *Integrity) Run(ctx context.Context) (*Result, error) {
	res := newResult(KindIntegrity)
	res.Metrics["trials"] = float64(v.cfg.Iterations)
	res.Metrics["bytes_per_trial"] = float64(v.cfg.TestDataSize)

	for trial := 0; trial < v.cfg.Iterations; trial++ {
		if err := v.runTrial(ctx, trial, res); err != nil {
			return res.finalize(), err
		}
	}
	return res.finalize(), nil
}

func (v *Integrity) runTrial(ctx context.Context, trial int, res *Result) (fatal error) {
	path := filepath.Join(v.dir, fmt.Sprintf("integrity_%02d.dat", trial))
	defer os.Remove(path)

	// distinct seed per trial so every trial exercises distinct content
	data := make([]byte, v.cfg.TestDataSize)
	rand.New(rand.NewSource(v.cfg.Seed + int64(trial))).Read(data)
	want := checksum.Digest(data)

	if err := v.writeOut(ctx, path, data); err != nil {
		if blockio.IsDeviceRemoved(err) {
			return err
		}
		res.fail(ioFailure("write", err))
		return nil
	}

	if v.corrupt != nil {
		if err := v.corrupt(trial, path); err != nil {
			return fmt.Errorf("corrupt hook on trial %d: %w", trial, err)
		}
	}

	got, n, err := v.readBack(ctx, path)
	if err != nil {
		if blockio.IsDeviceRemoved(err) {
			return err
		}
		res.fail(ioFailure("read", err))
		return nil
	}

	if got != want {
		v.logger.Warn().Int("trial", trial).Msg("checksum mismatch")
		res.fail(FailureRecord{
			Scenario: "checksum_mismatch",
			Expected: want.Hex(),
			Actual:   got.Hex(),
			Detail:   fmt.Sprintf("trial %d, %d bytes read back", trial, n),
		})
		return nil
	}

	res.pass()
	return nil
}

// writeOut commits the buffer and closes the handle, so the read-back
// below goes through a fresh handle rather than a warm one.
func (v *Integrity) writeOut(ctx context.Context, path string, data []byte) error {
	wf, err := v.files.OpenWrite(v.logger, path)
	if err != nil {
		return err
	}
	if _, err := wf.WriteBlockAt(ctx, data, 0); err != nil {
		wf.Close()
		return err
	}
	return wf.Close()
}

func (v *Integrity) readBack(ctx context.Context, path string) (checksum.Checksum, int, error) {
	rf, err := v.files.OpenRead(v.logger, path, false)
	if err != nil {
		return checksum.Checksum{}, 0, err
	}
	defer rf.Close()
	rf.DropCache()

	buf := make([]byte, v.cfg.TestDataSize)
	n, err := rf.ReadBlockAt(ctx, buf, 0)
	if err != nil {
		return checksum.Checksum{}, n, err
	}
	return checksum.Digest(buf[:n]), n, nil
}
