package validation

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/driveprobe/driveprobe/probe/device"
)

// RunSuites validates each target on its own worker. Workers never share
// a device: each owns its target exclusively for the worker's lifetime,
// and all I/O for a device happens inside that worker so a hang on one
// device cannot stall bookkeeping for the others. Entries in the returned
// slice are positionally matched to targets and nil when that device's
// suite could not even start.
func RunSuites(ctx context.Context, logger zerolog.Logger, clk clock.Clock, targets []*device.Target, cfg Config, kinds []Kind) []*Suite {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	wp := workerpool.New(workers)
	suites := make([]*Suite, len(targets))

	for i, target := range targets {
		i, target := i, target
		wp.Submit(func() {
			orch := NewOrchestrator(logger, clk, target, cfg)
			suite, err := orch.Run(ctx, kinds)
			if err != nil {
				logger.Error().Err(err).Str("device", target.Path).Msg("suite ended with errors")
			}
			suites[i] = suite
		})
	}
	wp.StopWait()
	return suites
}
