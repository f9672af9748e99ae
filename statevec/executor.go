package statevec

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
)

// apply drives the group iteration for one gate. Target qubits below
// BlockBits select bits of the local offset, so those amplitudes share a
// block; targets at or above BlockBits select bits of the block index, so
// each group spans the Cartesian product of 2^(cross bits) blocks, which are
// acquired jointly and pinned for the duration of the tuple's update.
//
// Iteration is ascending by the group's lowest constituent global index,
// for determinism and monotonic tier access. Cancellation is checked only
// between block tuples; a started tuple always completes, so write-through
// never commits a half-updated group.
func (s *Store) apply(ctx context.Context, g Gate, targets []uint32) error {
	blockBits := s.cfg.BlockBits
	dim := 1 << g.Arity

	// Per matrix basis index m: the local-offset and block-index deltas
	// contributed by m's set target bits.
	offsetDelta := make([]uint64, dim)
	blockDelta := make([]uint64, dim)
	for m := 1; m < dim; m++ {
		for j, q := range targets {
			if m>>uint(j)&1 == 1 {
				if q < blockBits {
					offsetDelta[m] |= 1 << q
				} else {
					blockDelta[m] |= 1 << (q - blockBits)
				}
			}
		}
	}
	localMask := offsetDelta[dim-1]
	crossMask := blockDelta[dim-1]

	groupBlocks := 1 << bits.OnesCount64(crossMask)
	if groupBlocks > s.mgr.BudgetBlocks() {
		return fmt.Errorf("%w: gate %s needs %d jointly resident blocks, budget %d",
			ErrBudgetTooSmall, g.Name, groupBlocks, s.mgr.BudgetBlocks())
	}

	// Distinct block deltas of one tuple, ascending.
	deltas := make([]uint64, 0, groupBlocks)
	for sub := crossMask; ; sub = (sub - 1) & crossMask {
		deltas = append(deltas, sub)
		if sub == 0 {
			break
		}
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	deltaPos := make(map[uint64]int, groupBlocks)
	for i, d := range deltas {
		deltaPos[d] = i
	}

	ampsPerBlock := uint64(1) << blockBits
	totalBlocks := s.cfg.TotalBlocks()
	indices := make([]uint64, groupBlocks)
	blockFor := make([]*Block, dim)
	in := make([]complex128, dim)
	out := make([]complex128, dim)

	for base := uint64(0); base < totalBlocks; base++ {
		if base&crossMask != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, d := range deltas {
			indices[i] = base | d
		}
		// A tuple of never-materialized blocks holds only zeros, which any
		// linear transform maps to zeros; nothing to do.
		allZero := true
		for _, idx := range indices {
			if s.mgr.Materialized(idx) {
				allZero = false
				break
			}
		}
		if allZero {
			continue
		}
		blocks, err := s.mgr.AcquireGroup(ctx, indices)
		if err != nil {
			return err
		}
		for m := 0; m < dim; m++ {
			blockFor[m] = blocks[deltaPos[blockDelta[m]]]
		}
		for off := uint64(0); off < ampsPerBlock; off++ {
			if off&localMask != 0 {
				continue
			}
			for m := 0; m < dim; m++ {
				in[m] = blockFor[m].amps[off|offsetDelta[m]]
			}
			for r := 0; r < dim; r++ {
				row := g.Matrix[r]
				var acc complex128
				for m := 0; m < dim; m++ {
					acc += row[m] * in[m]
				}
				out[r] = acc
			}
			for r := 0; r < dim; r++ {
				blockFor[r].amps[off|offsetDelta[r]] = out[r]
			}
		}
		if err := s.mgr.ReleaseGroup(ctx, blocks, true); err != nil {
			return err
		}
	}
	return nil
}
