package statevec

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// Outcome is the marginal probability of one bit pattern over the measured
// qubit subset. Bit j of Value corresponds to the j-th measured qubit.
type Outcome struct {
	Value       uint64
	Probability float64
}

// Bits renders the outcome as a bit string, least significant qubit first.
func (o Outcome) Bits(width int) string {
	b := make([]byte, width)
	for j := 0; j < width; j++ {
		b[j] = '0' + byte(o.Value>>uint(j)&1)
	}
	return string(b)
}

// Measure computes marginal probabilities for the target qubits in a single
// ascending read-only block pass. No block is marked dirty.
func (s *Store) Measure(ctx context.Context, targets ...uint32) ([]Outcome, error) {
	if len(targets) == 0 || len(targets) > 20 {
		return nil, fmt.Errorf("%w: measuring %d qubits", ErrInvalidQubitIndex, len(targets))
	}
	if err := s.validateTargets(targets); err != nil {
		return nil, err
	}
	probs := make([]float64, 1<<len(targets))
	blockBits := s.cfg.BlockBits
	for bi := uint64(0); bi < s.cfg.TotalBlocks(); bi++ {
		if !s.mgr.Materialized(bi) {
			continue
		}
		b, err := s.mgr.Acquire(ctx, bi)
		if err != nil {
			return nil, err
		}
		for off, a := range b.Amplitudes() {
			p := real(a)*real(a) + imag(a)*imag(a)
			if p == 0 {
				continue
			}
			global := bi<<blockBits | uint64(off)
			probs[outcomeOf(global, targets)] += p
		}
		if err := s.mgr.Release(ctx, b, false); err != nil {
			return nil, err
		}
	}
	outcomes := make([]Outcome, len(probs))
	for v, p := range probs {
		outcomes[v] = Outcome{Value: uint64(v), Probability: p}
	}
	return outcomes, nil
}

// Sample draws one outcome for the target qubits from rng and collapses the
// state onto it: matching amplitudes are scaled by 1/√p, the rest zeroed,
// with the same block-acquisition discipline as gate application.
func (s *Store) Sample(ctx context.Context, rng *rand.Rand, targets ...uint32) (Outcome, error) {
	outcomes, err := s.Measure(ctx, targets...)
	if err != nil {
		return Outcome{}, err
	}
	r := rng.Float64()
	chosen := outcomes[len(outcomes)-1]
	acc := 0.0
	for _, o := range outcomes {
		acc += o.Probability
		if r < acc {
			chosen = o
			break
		}
	}
	if chosen.Probability <= 0 {
		return Outcome{}, fmt.Errorf("statevec: sampled outcome %d has zero probability", chosen.Value)
	}
	if err := s.collapse(ctx, targets, chosen); err != nil {
		return Outcome{}, err
	}
	return chosen, nil
}

// collapse projects the state onto the outcome and renormalizes, one
// ascending pass, releasing every touched block dirty.
func (s *Store) collapse(ctx context.Context, targets []uint32, o Outcome) error {
	scale := complex(1/math.Sqrt(o.Probability), 0)
	blockBits := s.cfg.BlockBits
	for bi := uint64(0); bi < s.cfg.TotalBlocks(); bi++ {
		if !s.mgr.Materialized(bi) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := s.mgr.Acquire(ctx, bi)
		if err != nil {
			return err
		}
		amps := b.Amplitudes()
		for off := range amps {
			global := bi<<blockBits | uint64(off)
			if outcomeOf(global, targets) == o.Value {
				amps[off] *= scale
			} else {
				amps[off] = 0
			}
		}
		if err := s.mgr.Release(ctx, b, true); err != nil {
			return err
		}
	}
	return nil
}

// outcomeOf extracts the measured-qubit bits of a global amplitude index.
func outcomeOf(global uint64, targets []uint32) uint64 {
	var v uint64
	for j, q := range targets {
		v |= (global >> uint64(q) & 1) << uint(j)
	}
	return v
}
