package validation

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/facebookgo/clock"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/blockio"
	"github.com/driveprobe/driveprobe/probe/checksum"
)

// consecutive over-threshold cycles before the run is declared degraded
const degradeStrikes = 3

// Endurance repeats write+verify cycles and tracks the throughput trend
// against a baseline taken from the first cycles. A device already known
// to be failing is abandoned early: completeness is traded for bounded
// runtime once degradation is sustained, and an integrity failure aborts
// at once since further cycles prove nothing.
type Endurance struct {
	logger zerolog.Logger
	clk    clock.Clock
	cfg    Config
	dir    string
	files  *blockio.FileSet

	// throughput, when set, overrides the measured per-cycle throughput.
	// Used to exercise the degradation policy.
	throughput func(cycle int, measured float64) float64
}

// cyclePoint is one sample of the endurance time series. The series is
// summarized into Result.Metrics and discarded when the run completes.
type cyclePoint struct {
	index         int
	throughputMBs float64
	integrityOK   bool
	elapsedMs     int64
}

func NewEndurance(logger zerolog.Logger, clk clock.Clock, cfg Config, scratchDir string) *Endurance {
	return &Endurance{
		logger: logger.With().Str("test", string(KindEndurance)).Logger(),
		clk:    clk,
		cfg:    cfg,
		dir:    scratchDir,
	}
}

func (e *Endurance) Run(ctx context.Context) (*Result, error) {
	res := newResult(KindEndurance)
	path := filepath.Join(e.dir, "endurance.dat")
	defer os.Remove(path)

	wf, err := e.files.OpenWrite(e.logger, path)
	if err != nil {
		if blockio.IsDeviceRemoved(err) {
			return res.finalize(), err
		}
		res.fail(ioFailure("open", err))
		return res.finalize(), nil
	}
	defer wf.Close()

	buffer := make([]byte, e.cfg.TestDataSize)
	rand.New(rand.NewSource(e.cfg.Seed)).Read(buffer)

	tracker := newDegradeTracker(e.cfg.EnduranceCycles, e.cfg.DegradationThresholdPct)
	var points []cyclePoint
	earlyAbort := false

	for cycle := 0; cycle < e.cfg.EnduranceCycles; cycle++ {
		if ctx.Err() != nil {
			break
		}

		// stamp the cycle index into the buffer so every cycle writes
		// distinct content and a stale read from a previous cycle cannot
		// verify
		if len(buffer) >= 8 {
			binary.LittleEndian.PutUint64(buffer, uint64(cycle))
		}
		want := checksum.NewCRC(buffer)

		start := e.clk.Now()
		if _, err := wf.WriteBlockAt(ctx, buffer, 0); err != nil {
			if blockio.IsDeviceRemoved(err) {
				return e.summarize(res, points, tracker, true), err
			}
			res.fail(ioFailure("write", err))
			earlyAbort = true
			break
		}
		elapsed := e.clk.Now().Sub(start)
		throughput := throughputMBs(len(buffer), elapsed)
		if e.throughput != nil {
			throughput = e.throughput(cycle, throughput)
		}

		ok, err := e.verifyCycle(ctx, path, uint32(want))
		if err != nil {
			if blockio.IsDeviceRemoved(err) {
				return e.summarize(res, points, tracker, true), err
			}
			res.fail(ioFailure("read", err))
			earlyAbort = true
			break
		}

		points = append(points, cyclePoint{
			index:         cycle,
			throughputMBs: throughput,
			integrityOK:   ok,
			elapsedMs:     elapsed.Milliseconds(),
		})

		if !ok {
			res.fail(FailureRecord{
				Scenario: "checksum_mismatch",
				Expected: fmt.Sprintf("crc %08x", uint32(want)),
				Actual:   "mismatch on read-back",
				Detail:   fmt.Sprintf("cycle %d", cycle),
			})
			earlyAbort = true
			break
		}

		degradation, abort := tracker.add(throughput)
		if abort {
			res.fail(FailureRecord{
				Scenario: "sustained_degradation",
				Expected: fmt.Sprintf("degradation <= %.1f%% of baseline", e.cfg.DegradationThresholdPct),
				Actual:   fmt.Sprintf("%.1f%% below baseline for %d consecutive cycles", degradation, degradeStrikes),
				Detail:   fmt.Sprintf("baseline %.2f MB/s, cycle %d at %.2f MB/s", tracker.baseline, cycle, throughput),
			})
			earlyAbort = true
			break
		}

		res.pass()
		e.logger.Debug().
			Int("cycle", cycle).
			Float64("mb_s", throughput).
			Float64("degradation_pct", degradation).
			Msg("endurance cycle done")
	}

	return e.summarize(res, points, tracker, earlyAbort), nil
}

// verifyCycle re-reads the whole file through a fresh handle and checks
// the cheap per-cycle CRC.
func (e *Endurance) verifyCycle(ctx context.Context, path string, want uint32) (bool, error) {
	rf, err := e.files.OpenRead(e.logger, path, false)
	if err != nil {
		return false, err
	}
	defer rf.Close()
	rf.DropCache()

	buf := make([]byte, e.cfg.TestDataSize)
	n, err := rf.ReadBlockAt(ctx, buf, 0)
	if err != nil {
		return false, err
	}
	return uint32(checksum.NewCRC(buf[:n])) == want && int64(n) == e.cfg.TestDataSize, nil
}

// summarize folds the cycle series into a handful of statistics so the
// result payload stays bounded no matter how many cycles ran.
func (e *Endurance) summarize(res *Result, points []cyclePoint, tracker *degradeTracker, earlyAbort bool) *Result {
	// an abort landing on the final cycle still completed every configured
	// cycle; the flag is true only when cycles were actually left undone
	earlyAbort = earlyAbort && len(points) < e.cfg.EnduranceCycles

	res.Metrics["cycles_configured"] = float64(e.cfg.EnduranceCycles)
	res.Metrics["cycles_completed"] = float64(len(points))
	res.Metrics["early_abort"] = boolMetric(earlyAbort)
	res.Metrics["baseline_mb_s"] = tracker.baseline
	res.Metrics["max_degradation_pct"] = tracker.maxDegradation

	if len(points) > 0 {
		series := make([]float64, len(points))
		for i, p := range points {
			series[i] = p.throughputMBs
		}
		min, _ := stats.Min(series)
		median, _ := stats.Median(series)
		max, _ := stats.Max(series)
		res.Metrics["throughput_mb_s_min"] = min
		res.Metrics["throughput_mb_s_median"] = median
		res.Metrics["throughput_mb_s_max"] = max
		res.Metrics["final_mb_s"] = points[len(points)-1].throughputMBs
	}
	return res.finalize()
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// degradeTracker maintains the moving baseline and the consecutive-breach
// abort policy. Baseline = mean throughput of the first 10% of cycles,
// minimum one.
type degradeTracker struct {
	window       int
	thresholdPct float64

	seen           int
	sum            float64
	baseline       float64
	consecutive    int
	maxDegradation float64
}

func newDegradeTracker(totalCycles int, thresholdPct float64) *degradeTracker {
	window := totalCycles / 10
	if window < 1 {
		window = 1
	}
	return &degradeTracker{window: window, thresholdPct: thresholdPct}
}

// add records one cycle's throughput and reports the degradation versus
// the baseline, plus whether the sustained-degradation policy says abort.
// Cycles inside the baseline window never trigger an abort.
func (d *degradeTracker) add(throughput float64) (degradationPct float64, abort bool) {
	d.seen++
	if d.seen <= d.window {
		d.sum += throughput
		d.baseline = d.sum / float64(d.seen)
		return 0, false
	}
	if d.baseline <= 0 {
		return 0, false
	}
	degradationPct = (d.baseline - throughput) / d.baseline * 100
	if degradationPct > d.maxDegradation {
		d.maxDegradation = degradationPct
	}
	if degradationPct > d.thresholdPct {
		d.consecutive++
	} else {
		d.consecutive = 0
	}
	return degradationPct, d.consecutive >= degradeStrikes
}
