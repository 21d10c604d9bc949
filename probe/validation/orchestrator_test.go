package validation

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveprobe/driveprobe/probe/blockio"
	"github.com/driveprobe/driveprobe/probe/device"
)

func testTarget(t *testing.T) *device.Target {
	t.Helper()
	target, err := device.Snapshot(t.TempDir())
	require.NoError(t, err)
	return target
}

func TestOrchestratorFullSuite(t *testing.T) {
	cfg := testConfig()
	cfg.TestDataSize = 64 * 1024
	cfg.EnduranceCycles = 2
	cfg.DegradationThresholdPct = 99.0

	target := testTarget(t)
	orch := NewOrchestrator(zerolog.Nop(), clock.New(), target, cfg)
	require.Equal(t, Idle, orch.State())

	suite, err := orch.Run(context.Background(), AllKinds)
	require.NoError(t, err)
	require.NotNil(t, suite)

	assert.Equal(t, Done, orch.State())
	assert.False(t, suite.Aborted)
	assert.NotEmpty(t, suite.RunID)
	assert.Len(t, suite.Results, len(AllKinds))

	sum := Aggregate(suite.Results)
	assert.Equal(t, sum.Total, suite.Total)
	assert.Equal(t, sum.Passed, suite.Passed)
	assert.Equal(t, sum.SuccessRate, suite.SuccessRate)
	assert.Equal(t, 0, suite.Failed)

	// scratch directory must be gone whatever happened
	_, statErr := os.Stat(filepath.Join(target.Path, ".driveprobe"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestratorTimeoutIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.PerTestTimeout = time.Second

	mck := clock.NewMock()
	orch := NewOrchestrator(zerolog.Nop(), mck, testTarget(t), cfg)
	orch.runners = map[Kind]runnerFunc{
		KindPerformance: func(ctx context.Context) (*Result, error) {
			<-ctx.Done() // hang until cancelled
			return nil, ctx.Err()
		},
		KindFault: func(ctx context.Context) (*Result, error) {
			res := newResult(KindFault)
			res.pass()
			return res.finalize(), nil
		},
	}

	done := make(chan struct{})
	var suite *Suite
	var err error
	go func() {
		suite, err = orch.Run(context.Background(), []Kind{KindPerformance, KindFault})
		close(done)
	}()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
			mck.Add(2 * time.Second)
			time.Sleep(time.Millisecond)
		}
	}
	require.NoError(t, err)
	require.Len(t, suite.Results, 2)

	timedOut := suite.Results[0]
	assert.Equal(t, 1, timedOut.Failed)
	require.Len(t, timedOut.Failures, 1)
	assert.Equal(t, "timeout", timedOut.Failures[0].Scenario)

	// the suite moved on past the timeout
	assert.Equal(t, 1, suite.Results[1].Passed)
	assert.Equal(t, Done, orch.State())
	assert.False(t, suite.Aborted)
}

func TestOrchestratorTimeoutForceClosesHandles(t *testing.T) {
	cfg := testConfig()
	cfg.PerTestTimeout = time.Second

	mck := clock.NewMock()
	dir := t.TempDir()
	orch := NewOrchestrator(zerolog.Nop(), mck, testTarget(t), cfg)

	opened := make(chan *blockio.File, 1)
	orch.runners = map[Kind]runnerFunc{
		KindPerformance: func(ctx context.Context) (*Result, error) {
			f, err := orch.files.OpenWrite(zerolog.Nop(), filepath.Join(dir, "held.dat"))
			if err != nil {
				return nil, err
			}
			opened <- f
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	done := make(chan struct{})
	var suite *Suite
	go func() {
		suite, _ = orch.Run(context.Background(), []Kind{KindPerformance})
		close(done)
	}()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
			mck.Add(2 * time.Second)
			time.Sleep(time.Millisecond)
		}
	}

	// the handle the abandoned component still holds must be dead, so a
	// syscall hung on it unblocks and scratch cleanup is not obstructed
	f := <-opened
	_, err := f.WriteBlockAt(context.Background(), []byte{0x01}, 0)
	require.Error(t, err)

	require.Len(t, suite.Results, 1)
	require.Len(t, suite.Results[0].Failures, 1)
	assert.Equal(t, "timeout", suite.Results[0].Failures[0].Scenario)
}

func TestOrchestratorSuiteTimingUsesInjectedClock(t *testing.T) {
	cfg := testConfig()
	mck := clock.NewMock()
	orch := NewOrchestrator(zerolog.Nop(), mck, testTarget(t), cfg)
	orch.runners = map[Kind]runnerFunc{
		KindFault: func(ctx context.Context) (*Result, error) {
			mck.Add(5 * time.Second)
			res := newResult(KindFault)
			res.pass()
			return res.finalize(), nil
		},
	}

	suite, err := orch.Run(context.Background(), []Kind{KindFault})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), suite.ElapsedMs)
}

func TestOrchestratorAbortsOnDeviceRemoved(t *testing.T) {
	cfg := testConfig()
	orch := NewOrchestrator(zerolog.Nop(), clock.New(), testTarget(t), cfg)
	orch.runners = map[Kind]runnerFunc{
		KindPerformance: func(ctx context.Context) (*Result, error) {
			res := newResult(KindPerformance)
			res.fail(FailureRecord{Scenario: "io_error", Expected: "write to complete", Actual: "device_removed"})
			return res.finalize(), blockio.Classify("write", "gone", syscall.ENODEV)
		},
		KindIntegrity: func(ctx context.Context) (*Result, error) {
			t.Error("must not run after device loss")
			return nil, nil
		},
	}

	suite, err := orch.Run(context.Background(), []Kind{KindPerformance, KindIntegrity, KindEndurance})
	require.Error(t, err)
	require.NotNil(t, suite, "partial results are still reported")

	assert.Equal(t, Aborted, orch.State())
	assert.True(t, suite.Aborted)
	require.Len(t, suite.Results, 3)
	assert.False(t, suite.Results[0].NotRun)
	assert.True(t, suite.Results[1].NotRun)
	assert.True(t, suite.Results[2].NotRun)

	// aggregation still happened over the partial results
	assert.Equal(t, 1, suite.Total)
	assert.Equal(t, 1, suite.Failed)
}

func TestOrchestratorComponentErrorWithoutResult(t *testing.T) {
	cfg := testConfig()
	orch := NewOrchestrator(zerolog.Nop(), clock.New(), testTarget(t), cfg)
	orch.runners = map[Kind]runnerFunc{
		KindFault: func(ctx context.Context) (*Result, error) {
			return nil, blockio.Classify("open", "x", syscall.EIO)
		},
	}

	suite, err := orch.Run(context.Background(), []Kind{KindFault})
	require.Error(t, err)
	require.Len(t, suite.Results, 1)
	assert.Equal(t, 1, suite.Results[0].Failed)
}

func TestRunSuitesParallelDevices(t *testing.T) {
	cfg := testConfig()
	cfg.TestDataSize = 64 * 1024
	cfg.EnduranceCycles = 2
	cfg.DegradationThresholdPct = 99.0
	cfg.Workers = 2

	targets := []*device.Target{testTarget(t), testTarget(t)}
	suites := RunSuites(context.Background(), zerolog.Nop(), clock.New(), targets, cfg, []Kind{KindIntegrity, KindFault})

	require.Len(t, suites, 2)
	for i, suite := range suites {
		require.NotNil(t, suite, "suite %d", i)
		assert.Equal(t, targets[i].Path, suite.Device.Path)
		assert.Equal(t, 0, suite.Failed)
	}
}
