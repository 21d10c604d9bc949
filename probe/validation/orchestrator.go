package validation

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/blockio"
	"github.com/driveprobe/driveprobe/probe/device"
	"github.com/driveprobe/driveprobe/probe/stats"
)

// State is the orchestrator's lifecycle position. Aborted is terminal and
// reachable from Running on unrecoverable device loss; aggregation still
// happens on the way there so partial results are reported.
type State int

const (
	Idle State = iota
	Running
	Aggregating
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Aggregating:
		return "aggregating"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type runnerFunc func(ctx context.Context) (*Result, error)

// Orchestrator sequences the requested test components against one device.
// Tests on a single device are strictly sequential: the next component
// starts only after the previous one returned or timed out.
type Orchestrator struct {
	logger zerolog.Logger
	clk    clock.Clock
	target *device.Target
	cfg    Config

	mu    sync.Mutex
	state State

	// files tracks every handle the running component holds open, so an
	// abandoned component can be force-closed out of its hung syscall
	files *blockio.FileSet

	// runners maps each kind to the component run; tests swap entries in
	runners map[Kind]runnerFunc
}

func NewOrchestrator(logger zerolog.Logger, clk clock.Clock, target *device.Target, cfg Config) *Orchestrator {
	return &Orchestrator{
		logger: logger.With().Str("device", target.Path).Logger(),
		clk:    clk,
		target: target,
		cfg:    cfg,
		state:  Idle,
		files:  blockio.NewFileSet(),
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes the requested kinds in order and aggregates their results.
// A per-test timeout marks that test failed and moves on; DeviceRemoved
// aborts the remainder of the suite, with the unrun tests flagged not_run
// and the partial results still aggregated. The returned error is non-nil
// only for interrupt or device loss; per-test failures live in the Suite.
func (o *Orchestrator) Run(ctx context.Context, kinds []Kind) (_ *Suite, errs error) {
	suite := &Suite{
		RunID:     uuid.NewString(),
		Device:    o.target,
		StartedAt: o.clk.Now(),
	}

	scratch, err := o.target.ScratchDir()
	if err != nil {
		return nil, fmt.Errorf("preparing scratch directory: %w", err)
	}
	defer func() {
		// nothing the engine wrote may survive the run, success or not
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			errs = multierror.Append(errs, fmt.Errorf("cleaning up scratch directory: %w", rmErr))
		}
	}()

	if o.runners == nil {
		o.runners = o.defaultRunners(scratch)
	}

	var aborted bool
	for _, k := range kinds {
		if aborted || ctx.Err() != nil {
			o.logger.Warn().Str("test", string(k)).Msg("test not run")
			res := newResult(k)
			res.NotRun = true
			suite.Results = append(suite.Results, res.finalize())
			continue
		}

		o.setState(Running)
		o.logger.Info().Str("test", string(k)).Msg("test starting")
		res, devErr := o.runOne(ctx, k)
		suite.Results = append(suite.Results, res)

		if devErr != nil && blockio.IsDeviceRemoved(devErr) {
			o.logger.Error().Err(devErr).Msg("device lost, aborting remaining tests")
			o.setState(Aborted)
			aborted = true
			errs = multierror.Append(errs, devErr)
		}
	}

	if ctx.Err() != nil {
		errs = multierror.Append(errs, ctx.Err())
	}

	o.setState(Aggregating)
	sum := Aggregate(suite.Results)
	suite.Total = sum.Total
	suite.Passed = sum.Passed
	suite.Failed = sum.Failed
	suite.SuccessRate = sum.SuccessRate
	suite.Aborted = aborted
	suite.ElapsedMs = o.clk.Now().Sub(suite.StartedAt).Milliseconds()

	if aborted {
		o.setState(Aborted)
	} else {
		o.setState(Done)
	}
	return suite, errs
}

// runOne races the component against the per-test timeout. On timeout the
// component is cancelled cooperatively and its (late) result discarded;
// the suite moves on, because a timeout is not fatal to the suite.
func (o *Orchestrator) runOne(ctx context.Context, k Kind) (*Result, error) {
	runner, ok := o.runners[k]
	if !ok {
		res := newResult(k)
		res.NotRun = true
		return res.finalize(), nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := runner(runCtx)
		ch <- outcome{res: res, err: err}
	}()

	start := o.clk.Now()
	timer := o.clk.Timer(o.cfg.PerTestTimeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		o.observe(k, o.clk.Now().Sub(start), out.res)
		if out.res == nil {
			res := newResult(k)
			res.fail(FailureRecord{
				Scenario: "internal_error",
				Expected: "a test result",
				Actual:   "none",
				Detail:   fmt.Sprint(out.err),
			})
			return res.finalize(), out.err
		}
		return out.res, out.err

	case <-timer.C:
		cancel()
		// a syscall hung on a dying medium never sees the cancelled ctx;
		// closing the handles is what actually unblocks it
		if n := o.files.CloseAll(); n > 0 {
			o.logger.Warn().Int("handles", n).Msg("force-closed abandoned file handles")
		}
		o.logger.Error().
			Str("test", string(k)).
			Dur("timeout", o.cfg.PerTestTimeout).
			Msg("test timed out")
		res := newResult(k)
		res.fail(FailureRecord{
			Scenario: "timeout",
			Expected: fmt.Sprintf("completion within %s", o.cfg.PerTestTimeout),
			Actual:   "still running at deadline",
		})
		stats.TestCounter.WithLabelValues(string(k), "timeout").Inc()
		return res.finalize(), nil

	case <-ctx.Done():
		cancel()
		o.files.CloseAll()
		res := newResult(k)
		res.NotRun = true
		return res.finalize(), ctx.Err()
	}
}

func (o *Orchestrator) observe(k Kind, elapsed time.Duration, res *Result) {
	stats.TestDurationHistogram.WithLabelValues(string(k)).Observe(elapsed.Seconds())
	outcome := "passed"
	if res == nil || res.Failed > 0 {
		outcome = "failed"
	}
	stats.TestCounter.WithLabelValues(string(k), outcome).Inc()
}

func (o *Orchestrator) defaultRunners(scratch string) map[Kind]runnerFunc {
	return map[Kind]runnerFunc{
		KindPerformance: func(ctx context.Context) (*Result, error) {
			b := NewBenchmark(o.logger, o.clk, o.cfg, scratch)
			b.files = o.files
			return b.Run(ctx)
		},
		KindIntegrity: func(ctx context.Context) (*Result, error) {
			it := NewIntegrity(o.logger, o.cfg, scratch)
			it.files = o.files
			return it.Run(ctx)
		},
		KindEndurance: func(ctx context.Context) (*Result, error) {
			e := NewEndurance(o.logger, o.clk, o.cfg, scratch)
			e.files = o.files
			return e.Run(ctx)
		},
		KindFault: func(ctx context.Context) (*Result, error) {
			f := NewFault(o.logger, o.cfg, scratch)
			f.files = o.files
			return f.Run(ctx)
		},
	}
}
