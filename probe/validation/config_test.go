package validation

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero iterations", func(c *Config) { c.Iterations = 0 }},
		{"no block sizes", func(c *Config) { c.BlockSizes = nil }},
		{"zero block size", func(c *Config) { c.BlockSizes = []int{4096, 0} }},
		{"zero data size", func(c *Config) { c.TestDataSize = 0 }},
		{"zero cycles", func(c *Config) { c.EnduranceCycles = 0 }},
		{"negative threshold", func(c *Config) { c.DegradationThresholdPct = -1 }},
		{"threshold over 100", func(c *Config) { c.DegradationThresholdPct = 150 }},
		{"zero timeout", func(c *Config) { c.PerTestTimeout = 0 }},
		{"unknown fault", func(c *Config) { c.FaultScenarios = []FaultKind{"emp_blast"} }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestFromConfigurationDefaults(t *testing.T) {
	cfg := FromConfiguration(viper.New())
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestFromConfigurationOverrides(t *testing.T) {
	v := viper.New()
	v.Set("test_parameters.iterations", 7)
	v.Set("test_parameters.block_sizes", []int{512})
	v.Set("test_parameters.test_data_size_bytes", 1048576)
	v.Set("test_parameters.endurance_cycles", 100)
	v.Set("test_parameters.endurance_degradation_threshold_pct", 15.5)
	v.Set("test_parameters.fault_scenarios", []string{"short_read"})
	v.Set("test_parameters.per_test_timeout_seconds", 2.5)
	v.Set("test_parameters.random_offsets", true)
	v.Set("test_parameters.seed", 99)
	v.Set("execution.workers", 4)

	cfg := FromConfiguration(v)
	assert.Equal(t, 7, cfg.Iterations)
	assert.Equal(t, []int{512}, cfg.BlockSizes)
	assert.Equal(t, int64(1048576), cfg.TestDataSize)
	assert.Equal(t, 100, cfg.EnduranceCycles)
	assert.Equal(t, 15.5, cfg.DegradationThresholdPct)
	assert.Equal(t, []FaultKind{ShortRead}, cfg.FaultScenarios)
	assert.Equal(t, 2500*time.Millisecond, cfg.PerTestTimeout)
	assert.True(t, cfg.RandomOffsets)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 4, cfg.Workers)
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds("all")
	require.NoError(t, err)
	assert.Equal(t, AllKinds, kinds)

	kinds, err = ParseKinds("integrity, fault")
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindIntegrity, KindFault}, kinds)

	_, err = ParseKinds("warp_drive")
	assert.Error(t, err)
}
