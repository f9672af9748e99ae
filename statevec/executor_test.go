package statevec

import (
	"context"
	"fmt"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// denseState is a flat in-memory amplitude vector used as the reference
// implementation for gate application. It shares the matrix convention of
// Gate: basis index bit j corresponds to target j.
type denseState []complex128

func newDense(qubits uint32) denseState {
	v := make(denseState, 1<<qubits)
	v[0] = 1
	return v
}

func (v denseState) apply(g Gate, targets ...uint32) {
	dim := 1 << g.Arity
	idx := make([]uint64, dim)
	in := make([]complex128, dim)
	for base := uint64(0); base < uint64(len(v)); base++ {
		aligned := true
		for _, q := range targets {
			if base>>uint(q)&1 == 1 {
				aligned = false
				break
			}
		}
		if !aligned {
			continue
		}
		for m := 0; m < dim; m++ {
			global := base
			for j, q := range targets {
				if m>>uint(j)&1 == 1 {
					global |= 1 << uint(q)
				}
			}
			idx[m] = global
			in[m] = v[global]
		}
		for r := 0; r < dim; r++ {
			var acc complex128
			for m := 0; m < dim; m++ {
				acc += g.Matrix[r][m] * in[m]
			}
			v[idx[r]] = acc
		}
	}
}

func TestBellState(t *testing.T) {
	s := newTestStore(t, memConfig(2, 1, 2))
	ctx := context.Background()

	require.NoError(t, s.ApplyGate(ctx, H(), 0))
	require.NoError(t, s.ApplyGate(ctx, CNOT(), 0, 1))

	assert.InDelta(t, sqrt2Inv, real(readAmp(t, s, 0)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(readAmp(t, s, 1)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(readAmp(t, s, 2)), 1e-12)
	assert.InDelta(t, sqrt2Inv, real(readAmp(t, s, 3)), 1e-12)
	assert.NoError(t, s.CheckNorm(ctx))
}

func TestSelfInverseGatesRoundtrip(t *testing.T) {
	s := newTestStore(t, memConfig(4, 2, 8))
	ctx := context.Background()

	type step struct {
		g       Gate
		targets []uint32
	}
	steps := []step{
		{X(), []uint32{3}},
		{H(), []uint32{2}},
		{CNOT(), []uint32{1, 3}},
		{CZ(), []uint32{2, 3}},
		{SWAP(), []uint32{0, 3}},
		{Toffoli(), []uint32{0, 2, 3}},
	}
	for _, st := range steps {
		require.NoError(t, s.ApplyGate(ctx, st.g, st.targets...))
		require.NoError(t, s.ApplyGate(ctx, st.g, st.targets...))
	}

	assert.InDelta(t, 1, real(readAmp(t, s, 0)), 1e-12)
	for g := uint64(1); g < 16; g++ {
		assert.InDelta(t, 0, cmplx.Abs(readAmp(t, s, g)), 1e-12, "amplitude %d", g)
	}
}

func TestToffoliAcrossBlocks(t *testing.T) {
	// BlockBits 1 puts qubits 2..4 in the block index, so the Toffoli group
	// spans 8 distinct blocks.
	s := newTestStore(t, memConfig(5, 1, 8))
	ctx := context.Background()

	require.NoError(t, s.ApplyGate(ctx, X(), 2))
	require.NoError(t, s.ApplyGate(ctx, X(), 3))
	require.NoError(t, s.ApplyGate(ctx, Toffoli(), 2, 3, 4))

	assert.InDelta(t, 1, real(readAmp(t, s, 28)), 1e-12) // |11100⟩... qubits 2,3,4 set
	assert.InDelta(t, 0, cmplx.Abs(readAmp(t, s, 12)), 1e-12)
	assert.LessOrEqual(t, s.Manager().ResidentCount(), 8)
}

type circuitStep struct {
	g       Gate
	targets []uint32
}

func randomSteps(rng *rand.Rand, qubits uint32, n int) []circuitStep {
	steps := make([]circuitStep, 0, n)
	for i := 0; i < n; i++ {
		q := uint32(rng.Intn(int(qubits)))
		p := uint32(rng.Intn(int(qubits)))
		for p == q {
			p = uint32(rng.Intn(int(qubits)))
		}
		theta := rng.Float64() * 6.28
		switch rng.Intn(8) {
		case 0:
			steps = append(steps, circuitStep{H(), []uint32{q}})
		case 1:
			steps = append(steps, circuitStep{T(), []uint32{q}})
		case 2:
			steps = append(steps, circuitStep{X(), []uint32{q}})
		case 3:
			steps = append(steps, circuitStep{RY(theta), []uint32{q}})
		case 4:
			steps = append(steps, circuitStep{RZ(theta), []uint32{q}})
		case 5:
			steps = append(steps, circuitStep{CNOT(), []uint32{q, p}})
		case 6:
			steps = append(steps, circuitStep{CZ(), []uint32{q, p}})
		case 7:
			steps = append(steps, circuitStep{SWAP(), []uint32{q, p}})
		}
	}
	return steps
}

// Random circuits over every block geometry must agree with the dense
// reference vector amplitude for amplitude.
func TestRandomCircuitsMatchReference(t *testing.T) {
	ctx := context.Background()
	for _, qubits := range []uint32{4, 5, 6} {
		for _, bits := range []uint32{1, 2, 3} {
			t.Run(fmt.Sprintf("q%d_b%d", qubits, bits), func(t *testing.T) {
				s := newTestStore(t, memConfig(qubits, bits, 8))
				ref := newDense(qubits)
				rng := rand.New(rand.NewSource(int64(qubits*10 + bits)))
				for _, st := range randomSteps(rng, qubits, 24) {
					require.NoError(t, s.ApplyGate(ctx, st.g, st.targets...))
					ref.apply(st.g, st.targets...)
				}
				for g := uint64(0); g < uint64(1)<<qubits; g++ {
					got := readAmp(t, s, g)
					assert.InDelta(t, real(ref[g]), real(got), 1e-9, "amplitude %d", g)
					assert.InDelta(t, imag(ref[g]), imag(got), 1e-9, "amplitude %d", g)
				}
			})
		}
	}
}

// The amplitude stream must not depend on the budget, only the IO pattern may.
func TestBudgetDoesNotAffectResults(t *testing.T) {
	ctx := context.Background()
	steps := []circuitStep{
		{H(), []uint32{2}},
		{RY(0.8), []uint32{3}},
		{CNOT(), []uint32{0, 1}},
		{T(), []uint32{2}},
		{H(), []uint32{3}},
		{X(), []uint32{0}},
		{RZ(1.3), []uint32{2}},
	}
	run := func(budget int) []complex128 {
		cfg := memConfig(4, 2, budget)
		cfg.MaxGateQubits = 1
		s := newTestStore(t, cfg)
		for _, st := range steps {
			require.NoError(t, s.ApplyGate(ctx, st.g, st.targets...))
		}
		out := make([]complex128, 16)
		for g := range out {
			out[g] = readAmp(t, s, uint64(g))
		}
		return out
	}

	tight := run(2)
	roomy := run(4)
	assert.Equal(t, roomy, tight)
}

func TestResidencyWithinBudget(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct{ qubits, bits uint32 }{
		{10, 6}, {16, 12}, {20, 16},
	} {
		t.Run(fmt.Sprintf("q%d_b%d", tc.qubits, tc.bits), func(t *testing.T) {
			s := newTestStore(t, memConfig(tc.qubits, tc.bits, 8))
			steps := []circuitStep{
				{H(), []uint32{tc.qubits - 1}},
				{H(), []uint32{tc.qubits - 2}},
				{CNOT(), []uint32{tc.qubits - 1, 0}},
				{H(), []uint32{0}},
			}
			for _, st := range steps {
				require.NoError(t, s.ApplyGate(ctx, st.g, st.targets...))
				assert.LessOrEqual(t, s.Manager().ResidentCount(), 8)
			}
			assert.NoError(t, s.CheckNorm(ctx))
		})
	}
}

func TestApplyGateHonorsCancellation(t *testing.T) {
	s := newTestStore(t, memConfig(4, 2, 8))
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ApplyGate(cancelled, H(), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), s.GatesApplied())
	assert.Equal(t, complex128(1), readAmp(t, s, 0))
}

func TestGateGroupExceedingBudget(t *testing.T) {
	cfg := memConfig(5, 1, 4)
	cfg.MaxGateQubits = 2
	s := newTestStore(t, cfg)

	// All three Toffoli targets land in the block index: 8 blocks > budget 4.
	err := s.ApplyGate(context.Background(), Toffoli(), 2, 3, 4)
	assert.ErrorIs(t, err, ErrBudgetTooSmall)
}
