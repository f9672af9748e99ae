package statevec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigOrDefault(t *testing.T) {
	var nilCfg *Config
	cfg := nilCfg.OrDefault()
	assert.Equal(t, uint32(3), cfg.MaxGateQubits)
	assert.Equal(t, 1e-6, cfg.NormTolerance)
	assert.Equal(t, uint64(4), cfg.RetryAttempts)

	in := &Config{QubitCount: 8, NormTolerance: 1e-9}
	out := in.OrDefault()
	assert.Equal(t, uint32(8), out.QubitCount)
	assert.Equal(t, 1e-9, out.NormTolerance)
	assert.Equal(t, uint32(3), out.MaxGateQubits)
	assert.Equal(t, 1e-9, in.NormTolerance, "OrDefault must not mutate its receiver")
}

func TestConfigDerivedSizes(t *testing.T) {
	cfg := memConfig(10, 4, 8).OrDefault()
	assert.Equal(t, int64(256), cfg.BlockBytes())
	assert.Equal(t, 8, cfg.BudgetBlocks())
	assert.Equal(t, uint64(64), cfg.TotalBlocks())
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config { return memConfig(8, 4, 8).OrDefault() }
	require.NoError(t, base().Validate())

	cfg := base()
	cfg.QubitCount = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.QubitCount = 49
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.BlockBits = 9
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.BudgetBytes = 0
	assert.ErrorIs(t, cfg.Validate(), ErrBudgetTooSmall)

	// A 3-qubit gate entirely above BlockBits needs 8 jointly resident blocks.
	cfg = base()
	cfg.BudgetBytes = 4 * cfg.BlockBytes()
	assert.ErrorIs(t, cfg.Validate(), ErrBudgetTooSmall)

	// Unless the geometry caps the cross bits below the gate arity.
	cfg = base()
	cfg.BlockBits = 6
	cfg.BudgetBytes = 4 * cfg.BlockBytes()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Tiers = nil
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hqsim.yaml")
	data := []byte(`qubit_count: 12
block_bits: 6
budget_bytes: 16384
checkpoint_dir: /var/lib/hqsim/ckpt
checkpoint_interval: 50
tiers:
  - kind: memory
    capacity_blocks: 8
  - kind: mapped
    path: /var/lib/hqsim/blocks.hqsv
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), cfg.QubitCount)
	assert.Equal(t, uint32(6), cfg.BlockBits)
	assert.Equal(t, int64(16384), cfg.BudgetBytes)
	assert.Equal(t, uint64(50), cfg.CheckpointInterval)
	require.Len(t, cfg.Tiers, 2)
	assert.Equal(t, "memory", cfg.Tiers[0].Kind)
	assert.Equal(t, int64(8), cfg.Tiers[0].CapacityBlocks)
	assert.Equal(t, "/var/lib/hqsim/blocks.hqsv", cfg.Tiers[1].Path)
	// Defaults applied on load.
	assert.Equal(t, uint64(4), cfg.RetryAttempts)
	assert.NoError(t, cfg.Validate())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
