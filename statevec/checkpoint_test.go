package statevec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hqsim/hqsim/statevec/storage"
)

// mappedCfg builds a 4-qubit, 2-amplitude-block config persisted to a mapped
// tier under dir, with checkpoints in a sibling directory.
func mappedCfg(dir string) *Config {
	return (&Config{
		QubitCount:    4,
		BlockBits:     1,
		BudgetBytes:   8 * 32,
		Tiers:         []TierSpec{{Kind: "mapped", Path: filepath.Join(dir, "blocks.hqsv")}},
		CheckpointDir: filepath.Join(dir, "ckpt"),
	}).OrDefault()
}

func openStore(t *testing.T, cfg *Config) (*Store, []storage.Tier) {
	t.Helper()
	ctx := context.Background()
	tiers, err := OpenTiers(ctx, cfg)
	require.NoError(t, err)
	s, err := New(ctx, cfg, tiers)
	require.NoError(t, err)
	return s, tiers
}

func applyTestCircuit(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.ApplyGate(ctx, H(), 0))
	require.NoError(t, s.ApplyGate(ctx, CNOT(), 0, 1))
	require.NoError(t, s.ApplyGate(ctx, RY(0.4), 3))
	require.NoError(t, s.ApplyGate(ctx, T(), 0))
}

func TestCheckpointAndResume(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := mappedCfg(dir)

	s, tiers := openStore(t, cfg)
	applyTestCircuit(t, s)
	require.NotNil(t, s.Checkpoints())
	require.NoError(t, s.Checkpoints().Checkpoint(ctx))
	assert.Equal(t, uint64(1), s.Checkpoints().Epoch())
	assert.Equal(t, CheckpointIdle, s.Checkpoints().State())
	closeTiers(tiers)

	// Commit must be atomic: a manifest, never a temp file.
	tmps, err := filepath.Glob(filepath.Join(cfg.CheckpointDir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps)

	// The same circuit on a throwaway store gives the expected amplitudes.
	want := newTestStore(t, memConfig(4, 1, 8))
	applyTestCircuit(t, want)

	r, err := Resume(ctx, cfg.CheckpointDir, &Config{BudgetBytes: 8 * 32})
	require.NoError(t, err)
	t.Cleanup(func() { closeTiers(r.mgr.tiers) })
	assert.Equal(t, uint64(1), r.Checkpoints().Epoch())
	assert.Equal(t, uint32(4), r.Config().QubitCount)
	assert.Equal(t, uint32(1), r.Config().BlockBits)

	for g := uint64(0); g < 16; g++ {
		assert.Equal(t, readAmp(t, want, g), readAmp(t, r, g), "amplitude %d", g)
	}
	assert.NoError(t, r.CheckNorm(ctx))
}

func TestResumeFallsBackToOlderManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := mappedCfg(dir)

	s, tiers := openStore(t, cfg)
	applyTestCircuit(t, s)
	require.NoError(t, s.Checkpoints().Checkpoint(ctx))
	require.NoError(t, s.Checkpoints().Checkpoint(ctx))
	assert.Equal(t, uint64(2), s.Checkpoints().Epoch())
	closeTiers(tiers)

	// Mangle the newest manifest; resume must fall back to epoch 1.
	newest := filepath.Join(cfg.CheckpointDir, "checkpoint-00000002.yaml")
	require.NoError(t, os.WriteFile(newest, []byte("epoch: [garbage"), 0o644))

	r, err := Resume(ctx, cfg.CheckpointDir, &Config{BudgetBytes: 8 * 32})
	require.NoError(t, err)
	t.Cleanup(func() { closeTiers(r.mgr.tiers) })
	assert.Equal(t, uint64(1), r.Checkpoints().Epoch())

	want := newTestStore(t, memConfig(4, 1, 8))
	applyTestCircuit(t, want)
	for g := uint64(0); g < 16; g++ {
		assert.Equal(t, readAmp(t, want, g), readAmp(t, r, g), "amplitude %d", g)
	}
}

// A block first flushed after the last committed manifest is absent from its
// block table; resume must still pick it up from the tier instead of reading
// it as zeros and dropping its amplitude mass.
func TestResumeRecoversBlocksFlushedAfterCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := (&Config{
		QubitCount:    2,
		BlockBits:     1,
		BudgetBytes:   2 * 32,
		Tiers:         []TierSpec{{Kind: "mapped", Path: filepath.Join(dir, "blocks.hqsv")}},
		CheckpointDir: filepath.Join(dir, "ckpt"),
	}).OrDefault()

	s, tiers := openStore(t, cfg)
	require.NoError(t, s.Checkpoints().Checkpoint(ctx)) // table holds block 0 only

	// Spreads mass onto block 1, which write-through flushes past the manifest.
	require.NoError(t, s.ApplyGate(ctx, H(), 1))
	closeTiers(tiers)

	r, err := Resume(ctx, cfg.CheckpointDir, &Config{BudgetBytes: 2 * 32})
	require.NoError(t, err)
	t.Cleanup(func() { closeTiers(r.mgr.tiers) })

	assert.True(t, r.mgr.Materialized(1))
	norm, err := r.NormSquared(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm, 1e-12)
	assert.InDelta(t, sqrt2Inv, real(readAmp(t, r, 0)), 1e-12)
	assert.InDelta(t, sqrt2Inv, real(readAmp(t, r, 2)), 1e-12)
}

// After a fallback resume the next checkpoint re-uses the stale epoch number;
// the rename must replace the unusable manifest with a committed one.
func TestCheckpointReplacesStaleManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := mappedCfg(dir)

	s, tiers := openStore(t, cfg)
	applyTestCircuit(t, s)
	require.NoError(t, s.Checkpoints().Checkpoint(ctx))
	require.NoError(t, s.Checkpoints().Checkpoint(ctx))
	closeTiers(tiers)

	newest := filepath.Join(cfg.CheckpointDir, "checkpoint-00000002.yaml")
	require.NoError(t, os.WriteFile(newest, []byte("epoch: [garbage"), 0o644))

	r, err := Resume(ctx, cfg.CheckpointDir, &Config{BudgetBytes: 8 * 32})
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.Checkpoints().Epoch())
	require.NoError(t, r.Checkpoints().Checkpoint(ctx)) // rewrites epoch 2
	closeTiers(r.mgr.tiers)

	r2, err := Resume(ctx, cfg.CheckpointDir, &Config{BudgetBytes: 8 * 32})
	require.NoError(t, err)
	t.Cleanup(func() { closeTiers(r2.mgr.tiers) })
	assert.Equal(t, uint64(2), r2.Checkpoints().Epoch())
}

func TestResumeWithNoUsableCheckpoint(t *testing.T) {
	ctx := context.Background()

	_, err := Resume(ctx, t.TempDir(), &Config{BudgetBytes: 8 * 32})
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)

	_, err = Resume(ctx, filepath.Join(t.TempDir(), "nope"), &Config{BudgetBytes: 8 * 32})
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}

func TestAutomaticCheckpointInterval(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := mappedCfg(dir)
	cfg.CheckpointInterval = 2

	s, tiers := openStore(t, cfg)
	t.Cleanup(func() { closeTiers(tiers) })
	applyTestCircuit(t, s) // 4 gates → checkpoints after the 2nd and 4th
	assert.Equal(t, uint64(2), s.Checkpoints().Epoch())

	require.NoError(t, s.ApplyGate(ctx, Z(), 0))
	assert.Equal(t, uint64(2), s.Checkpoints().Epoch())

	for _, name := range []string{"checkpoint-00000001.yaml", "checkpoint-00000002.yaml"} {
		_, err := os.Stat(filepath.Join(cfg.CheckpointDir, name))
		assert.NoError(t, err, name)
	}
}
