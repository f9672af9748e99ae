package statevec

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bellStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t, memConfig(2, 1, 2))
	ctx := context.Background()
	require.NoError(t, s.ApplyGate(ctx, H(), 0))
	require.NoError(t, s.ApplyGate(ctx, CNOT(), 0, 1))
	return s
}

func TestMeasureBellPair(t *testing.T) {
	s := bellStore(t)
	outcomes, err := s.Measure(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.InDelta(t, 0.5, outcomes[0].Probability, 1e-12) // |00⟩
	assert.InDelta(t, 0.0, outcomes[1].Probability, 1e-12)
	assert.InDelta(t, 0.0, outcomes[2].Probability, 1e-12)
	assert.InDelta(t, 0.5, outcomes[3].Probability, 1e-12) // |11⟩

	// Measurement is read-only.
	assert.Equal(t, 0, s.Manager().DirtyCount())
}

func TestMeasureMarginal(t *testing.T) {
	s := bellStore(t)
	outcomes, err := s.Measure(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.InDelta(t, 0.5, outcomes[0].Probability, 1e-12)
	assert.InDelta(t, 0.5, outcomes[1].Probability, 1e-12)
}

func TestMeasureRejectsBadTargets(t *testing.T) {
	s := bellStore(t)
	ctx := context.Background()

	_, err := s.Measure(ctx)
	assert.ErrorIs(t, err, ErrInvalidQubitIndex)
	_, err = s.Measure(ctx, 2)
	assert.ErrorIs(t, err, ErrInvalidQubitIndex)
	_, err = s.Measure(ctx, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidQubitIndex)
}

func TestSampleCollapses(t *testing.T) {
	s := bellStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))

	outcome, err := s.Sample(ctx, rng, 0, 1)
	require.NoError(t, err)
	require.Contains(t, []uint64{0, 3}, outcome.Value)
	assert.InDelta(t, 0.5, outcome.Probability, 1e-12)

	// The state has been projected and renormalized.
	assert.NoError(t, s.CheckNorm(ctx))
	after, err := s.Measure(ctx, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, after[outcome.Value].Probability, 1e-12)
	for v, o := range after {
		if uint64(v) != outcome.Value {
			assert.InDelta(t, 0.0, o.Probability, 1e-12, "outcome %d", v)
		}
	}
	// Repeated sampling of a collapsed state is deterministic.
	again, err := s.Sample(ctx, rng, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, outcome.Value, again.Value)
	assert.InDelta(t, 1.0, again.Probability, 1e-12)
}

func TestOutcomeBits(t *testing.T) {
	assert.Equal(t, "1010", Outcome{Value: 5}.Bits(4))
	assert.Equal(t, "000", Outcome{Value: 0}.Bits(3))
	assert.Equal(t, "11", Outcome{Value: 3}.Bits(2))
}
