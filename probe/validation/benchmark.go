package validation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/facebookgo/clock"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/blockio"
)

// Benchmark measures write and read throughput across the configured
// block sizes. Completion without an I/O error inside the timeout is the
// only pass criterion; absolute throughput is surfaced as metrics and
// judged by the caller's policy, because thresholds are environment
// dependent.
type Benchmark struct {
	logger zerolog.Logger
	clk    clock.Clock
	cfg    Config
	dir    string
	files  *blockio.FileSet
}

func NewBenchmark(logger zerolog.Logger, clk clock.Clock, cfg Config, scratchDir string) *Benchmark {
	return &Benchmark{
		logger: logger.With().Str("test", string(KindPerformance)).Logger(),
		clk:    clk,
		cfg:    cfg,
		dir:    scratchDir,
	}
}

func (b *Benchmark) Run(ctx context.Context) (*Result, error) {
	res := newResult(KindPerformance)
	rng := rand.New(rand.NewSource(b.cfg.Seed))

	for _, bs := range b.cfg.BlockSizes {
		if err := b.runBlockSize(ctx, bs, rng, res); err != nil {
			return res.finalize(), err
		}
	}
	return res.finalize(), nil
}

// runBlockSize performs iterations × (write, read back) trials at one
// block size against a dedicated scratch file.
func (b *Benchmark) runBlockSize(ctx context.Context, blockSize int, rng *rand.Rand, res *Result) (fatal error) {
	path := filepath.Join(b.dir, fmt.Sprintf("bench_%d.dat", blockSize))
	defer os.Remove(path)

	wf, err := b.files.OpenWrite(b.logger, path)
	if err != nil {
		if blockio.IsDeviceRemoved(err) {
			return err
		}
		res.fail(ioFailure("open", err))
		return nil
	}
	defer wf.Close()

	offsets := b.offsets(blockSize, rng)
	data := make([]byte, blockSize)
	var writeMBs, readMBs, writeIOPS, readIOPS []float64

	for i := 0; i < b.cfg.Iterations; i++ {
		rng.Read(data)
		offset := offsets[i]

		start := b.clk.Now()
		if _, err := wf.WriteBlockAt(ctx, data, offset); err != nil {
			if blockio.IsDeviceRemoved(err) {
				return err
			}
			res.fail(ioFailure("write", err))
			continue
		}
		writeDur := b.clk.Now().Sub(start)

		readDur, err := b.readBack(ctx, path, blockSize, offset)
		if err != nil {
			if blockio.IsDeviceRemoved(err) {
				return err
			}
			res.fail(ioFailure("read", err))
			continue
		}

		res.pass()
		writeMBs = append(writeMBs, throughputMBs(blockSize, writeDur))
		readMBs = append(readMBs, throughputMBs(blockSize, readDur))
		writeIOPS = append(writeIOPS, opsPerSecond(writeDur))
		readIOPS = append(readIOPS, opsPerSecond(readDur))
	}

	b.summarize(res, blockSize, "write", writeMBs, writeIOPS)
	b.summarize(res, blockSize, "read", readMBs, readIOPS)
	return nil
}

// offsets precomputes per-iteration file offsets: monotonically increasing
// for the sequential pattern, drawn from the seeded generator for the
// random pattern so the same seed reproduces the same access sequence.
func (b *Benchmark) offsets(blockSize int, rng *rand.Rand) []int64 {
	offsets := make([]int64, b.cfg.Iterations)
	for i := range offsets {
		if b.cfg.RandomOffsets {
			offsets[i] = int64(rng.Intn(b.cfg.Iterations)) * int64(blockSize)
		} else {
			offsets[i] = int64(i) * int64(blockSize)
		}
	}
	return offsets
}

func (b *Benchmark) readBack(ctx context.Context, path string, blockSize int, offset int64) (time.Duration, error) {
	direct := blockSize%blockio.BlockAlign == 0 && offset%blockio.BlockAlign == 0
	rf, err := b.files.OpenRead(b.logger, path, direct)
	if err != nil {
		return 0, err
	}
	defer rf.Close()
	if !rf.Direct() {
		rf.DropCache()
	}

	buf := blockio.AlignedBuffer(blockSize)
	start := b.clk.Now()
	if _, err := rf.ReadBlockAt(ctx, buf, offset); err != nil {
		return 0, err
	}
	return b.clk.Now().Sub(start), nil
}

func (b *Benchmark) summarize(res *Result, blockSize int, op string, mbs, iops []float64) {
	if len(mbs) == 0 {
		return
	}
	min, _ := stats.Min(mbs)
	median, _ := stats.Median(mbs)
	max, _ := stats.Max(mbs)
	meanIOPS, _ := stats.Mean(iops)

	prefix := fmt.Sprintf("%s_%d", op, blockSize)
	res.Metrics[prefix+"_mb_s_min"] = min
	res.Metrics[prefix+"_mb_s_median"] = median
	res.Metrics[prefix+"_mb_s_max"] = max
	res.Metrics[prefix+"_iops"] = meanIOPS

	b.logger.Info().
		Int("block_size", blockSize).
		Str("op", op).
		Float64("mb_s_median", median).
		Float64("iops", meanIOPS).
		Msg("benchmark block size done")
}

func throughputMBs(bytes int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / d.Seconds() / (1024 * 1024)
}

func opsPerSecond(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return 1 / d.Seconds()
}

func ioFailure(op string, err error) FailureRecord {
	kind, _ := blockio.KindOf(err)
	return FailureRecord{
		Scenario: "io_error",
		Expected: op + " to complete",
		Actual:   kind.String(),
		Detail:   err.Error(),
	}
}
