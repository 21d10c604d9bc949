package validation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Iterations = 3
	cfg.BlockSizes = []int{4096}
	cfg.TestDataSize = 256 * 1024
	cfg.EnduranceCycles = 5
	cfg.PerTestTimeout = 30 * time.Second
	return cfg
}

func TestIntegrityAllTrialsPass(t *testing.T) {
	cfg := testConfig()
	cfg.TestDataSize = 1024 * 1024

	v := NewIntegrity(zerolog.Nop(), cfg, t.TempDir())
	res, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Passed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 100.0, res.SuccessRate)
	assert.Empty(t, res.Failures)
}

func TestIntegrityDetectsCorruption(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()

	v := NewIntegrity(zerolog.Nop(), cfg, dir)
	v.corrupt = func(trial int, path string) error {
		if trial != 1 {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data[100] ^= 0xFF
		return os.WriteFile(path, data, 0644)
	}

	res, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Passed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 66.7, res.SuccessRate)

	require.Len(t, res.Failures, 1)
	rec := res.Failures[0]
	assert.Equal(t, "checksum_mismatch", rec.Scenario)
	assert.Len(t, rec.Expected, 64)
	assert.Len(t, rec.Actual, 64)
	assert.NotEqual(t, rec.Expected, rec.Actual)
}

func TestIntegrityTrialsAreIndependent(t *testing.T) {
	cfg := testConfig()
	cfg.Iterations = 4

	v := NewIntegrity(zerolog.Nop(), cfg, t.TempDir())
	v.corrupt = func(trial int, path string) error {
		// corrupt the first trial; the remaining trials must still run
		if trial != 0 {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data[0] ^= 0x01
		return os.WriteFile(path, data, 0644)
	}

	res, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total, "no early abort on a failing trial")
	assert.Equal(t, 1, res.Failed)
}

func TestIntegrityCleansUpScratchFiles(t *testing.T) {
	dir := t.TempDir()
	v := NewIntegrity(zerolog.Nop(), testConfig(), dir)
	_, err := v.Run(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "every byte written must be removed before returning")
}
