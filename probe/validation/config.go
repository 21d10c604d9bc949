package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/driveprobe/driveprobe/probe/util"
)

// ErrConfiguration marks invalid test parameters; fatal before any device
// I/O begins.
var ErrConfiguration = errors.New("invalid configuration")

// Config carries the fully resolved test parameters. Loaded once, read-only
// afterwards, safe to share across device workers.
type Config struct {
	Iterations              int
	BlockSizes              []int
	TestDataSize            int64
	EnduranceCycles         int
	DegradationThresholdPct float64
	FaultScenarios          []FaultKind
	PerTestTimeout          time.Duration
	RandomOffsets           bool
	Seed                    int64
	Workers                 int
}

func DefaultConfig() Config {
	return Config{
		Iterations:              3,
		BlockSizes:              []int{4 * 1024, 64 * 1024, 1024 * 1024},
		TestDataSize:            16 * 1024 * 1024,
		EnduranceCycles:         20,
		DegradationThresholdPct: 30.0,
		FaultScenarios:          []FaultKind{TruncatedWrite, ShortRead, SimulatedDisconnect},
		PerTestTimeout:          300 * time.Second,
		RandomOffsets:           false,
		Seed:                    1,
		Workers:                 1,
	}
}

// FromConfiguration resolves Config from the loaded probe.toml, falling
// back to defaults for absent keys.
func FromConfiguration(v util.Configuration) Config {
	def := DefaultConfig()

	v.SetDefault("test_parameters.iterations", def.Iterations)
	v.SetDefault("test_parameters.block_sizes", def.BlockSizes)
	v.SetDefault("test_parameters.test_data_size_bytes", int(def.TestDataSize))
	v.SetDefault("test_parameters.endurance_cycles", def.EnduranceCycles)
	v.SetDefault("test_parameters.endurance_degradation_threshold_pct", def.DegradationThresholdPct)
	v.SetDefault("test_parameters.per_test_timeout_seconds", def.PerTestTimeout.Seconds())
	v.SetDefault("test_parameters.random_offsets", def.RandomOffsets)
	v.SetDefault("test_parameters.seed", int(def.Seed))
	v.SetDefault("execution.workers", def.Workers)

	scenarios := def.FaultScenarios
	if names := v.GetStringSlice("test_parameters.fault_scenarios"); len(names) > 0 {
		scenarios = make([]FaultKind, 0, len(names))
		for _, name := range names {
			scenarios = append(scenarios, FaultKind(name))
		}
	}

	return Config{
		Iterations:              v.GetInt("test_parameters.iterations"),
		BlockSizes:              v.GetIntSlice("test_parameters.block_sizes"),
		TestDataSize:            int64(v.GetInt("test_parameters.test_data_size_bytes")),
		EnduranceCycles:         v.GetInt("test_parameters.endurance_cycles"),
		DegradationThresholdPct: v.GetFloat64("test_parameters.endurance_degradation_threshold_pct"),
		FaultScenarios:          scenarios,
		PerTestTimeout:          time.Duration(v.GetFloat64("test_parameters.per_test_timeout_seconds") * float64(time.Second)),
		RandomOffsets:           v.GetBool("test_parameters.random_offsets"),
		Seed:                    int64(v.GetInt("test_parameters.seed")),
		Workers:                 v.GetInt("execution.workers"),
	}
}

// Validate performs the defensive checks the engine still makes even
// though the configuration collaborator hands over validated values.
func (c Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrConfiguration, c.Iterations)
	}
	if len(c.BlockSizes) == 0 {
		return fmt.Errorf("%w: at least one block size is required", ErrConfiguration)
	}
	for _, bs := range c.BlockSizes {
		if bs < 1 {
			return fmt.Errorf("%w: block size must be >= 1 byte, got %d", ErrConfiguration, bs)
		}
	}
	if c.TestDataSize < 1 {
		return fmt.Errorf("%w: test data size must be >= 1 byte, got %d", ErrConfiguration, c.TestDataSize)
	}
	if c.EnduranceCycles < 1 {
		return fmt.Errorf("%w: endurance cycles must be >= 1, got %d", ErrConfiguration, c.EnduranceCycles)
	}
	if c.DegradationThresholdPct <= 0 || c.DegradationThresholdPct > 100 {
		return fmt.Errorf("%w: degradation threshold must be in (0, 100], got %.1f", ErrConfiguration, c.DegradationThresholdPct)
	}
	if c.PerTestTimeout <= 0 {
		return fmt.Errorf("%w: per-test timeout must be positive, got %s", ErrConfiguration, c.PerTestTimeout)
	}
	for _, fk := range c.FaultScenarios {
		switch fk {
		case TruncatedWrite, ShortRead, SimulatedDisconnect:
		default:
			return fmt.Errorf("%w: unknown fault scenario %q", ErrConfiguration, fk)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrConfiguration, c.Workers)
	}
	return nil
}
