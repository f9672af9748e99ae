package statevec

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/hqsim/hqsim/statevec/storage"
)

// Store is the logical 2^n-length complex amplitude vector. It owns the
// global-index → (block index, local offset) translation exclusively and
// routes all amplitude access through its BlockManager. One goroutine drives
// a Store at a time; blocking tier IO is accepted by design.
type Store struct {
	cfg     *Config
	mgr     *BlockManager
	ckpt    *CheckpointManager
	gates   uint64  // gates applied since construction
	normDev float64 // last measured norm deviation
}

// New creates a store in the |0...0⟩ state over the given tier hierarchy.
// The tiers must not hold blocks from a previous run; use Resume for that.
// When cfg.CheckpointDir is set, a CheckpointManager is attached and, with a
// non-zero CheckpointInterval, checkpoints are taken every that many gates.
func New(ctx context.Context, cfg *Config, tiers []storage.Tier) (*Store, error) {
	cfg = cfg.OrDefault()
	mgr, err := NewBlockManager(cfg, tiers)
	if err != nil {
		return nil, err
	}
	s := &Store{cfg: cfg, mgr: mgr}
	if cfg.CheckpointDir != "" {
		s.ckpt = NewCheckpointManager(s, cfg.CheckpointDir)
	}
	// Amplitude 0 starts at 1+0i; every other block is created lazily as zeros.
	if err := s.Write(ctx, 0, 1); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the store configuration.
func (s *Store) Config() *Config { return s.cfg }

// Manager returns the block manager, for residency observation.
func (s *Store) Manager() *BlockManager { return s.mgr }

// Checkpoints returns the attached checkpoint manager, or nil.
func (s *Store) Checkpoints() *CheckpointManager { return s.ckpt }

// blockOf decomposes a global amplitude index.
func (s *Store) blockOf(global uint64) (block uint64, offset uint64) {
	return global >> s.cfg.BlockBits, global & ((1 << s.cfg.BlockBits) - 1)
}

// Read returns the amplitude at global index. The backing block is acquired
// only for the duration of the access.
func (s *Store) Read(ctx context.Context, global uint64) (complex128, error) {
	if global >= uint64(1)<<s.cfg.QubitCount {
		return 0, fmt.Errorf("statevec: amplitude index %d out of range", global)
	}
	bi, off := s.blockOf(global)
	b, err := s.mgr.Acquire(ctx, bi)
	if err != nil {
		return 0, err
	}
	v := b.Amplitudes()[off]
	return v, s.mgr.Release(ctx, b, false)
}

// Write sets the amplitude at global index, flushing the block through to
// its tier before returning.
func (s *Store) Write(ctx context.Context, global uint64, v complex128) error {
	if global >= uint64(1)<<s.cfg.QubitCount {
		return fmt.Errorf("statevec: amplitude index %d out of range", global)
	}
	bi, off := s.blockOf(global)
	b, err := s.mgr.Acquire(ctx, bi)
	if err != nil {
		return err
	}
	b.Amplitudes()[off] = v
	return s.mgr.Release(ctx, b, true)
}

// validateTargets rejects out-of-range or duplicated target qubits before
// any mutation.
func (s *Store) validateTargets(targets []uint32) error {
	var seen uint64
	for _, q := range targets {
		if q >= s.cfg.QubitCount {
			return fmt.Errorf("%w: qubit %d with qubit_count %d", ErrInvalidQubitIndex, q, s.cfg.QubitCount)
		}
		if seen&(1<<q) != 0 {
			return fmt.Errorf("%w: qubit %d duplicated", ErrInvalidQubitIndex, q)
		}
		seen |= 1 << q
	}
	return nil
}

// ApplyGate applies the gate matrix jointly to every amplitude group the
// targets define. Cancellation is honored at group boundaries only, so an
// interrupted application never leaves a group half-updated. A post-gate
// norm deviation beyond the tolerance is logged as a diagnostic, never
// treated as fatal; query it with CheckNorm. A tier IO failure that survives
// its retries is fatal to the gate: a best-effort checkpoint is attempted so
// the durable state stays recoverable, then the error propagates.
func (s *Store) ApplyGate(ctx context.Context, g Gate, targets ...uint32) error {
	if len(targets) != g.Arity {
		return fmt.Errorf("%w: gate %s wants %d targets, got %d", ErrInvalidQubitIndex, g.Name, g.Arity, len(targets))
	}
	if err := s.validateTargets(targets); err != nil {
		return err
	}
	if err := s.apply(ctx, g, targets); err != nil {
		if s.ckpt != nil && errors.Is(err, ErrTierIO) {
			if ckErr := s.ckpt.Checkpoint(ctx); ckErr != nil {
				logrus.Warnf("statevec: best-effort checkpoint after tier failure: %v", ckErr)
			}
		}
		return err
	}
	s.gates++
	if !s.cfg.DisableNormCheck {
		norm, err := s.NormSquared(ctx)
		if err != nil {
			return err
		}
		s.normDev = math.Abs(norm - 1)
		if s.normDev > s.cfg.NormTolerance {
			logrus.Warnf("statevec: denormalized after %s: |amplitudes|^2 = %.12f (deviation %.3e)", g.Name, norm, s.normDev)
		}
	}
	if s.ckpt != nil && s.cfg.CheckpointInterval > 0 && s.gates%s.cfg.CheckpointInterval == 0 {
		if err := s.ckpt.Checkpoint(ctx); err != nil {
			return err
		}
	}
	return nil
}

// NormSquared sums |amplitude|^2 over the whole store in one ascending
// read-only pass. Blocks never materialized hold only zeros and are skipped.
func (s *Store) NormSquared(ctx context.Context) (float64, error) {
	var sum float64
	for bi := uint64(0); bi < s.cfg.TotalBlocks(); bi++ {
		if !s.mgr.Materialized(bi) {
			continue
		}
		b, err := s.mgr.Acquire(ctx, bi)
		if err != nil {
			return 0, err
		}
		for _, a := range b.Amplitudes() {
			sum += real(a)*real(a) + imag(a)*imag(a)
		}
		if err := s.mgr.Release(ctx, b, false); err != nil {
			return 0, err
		}
	}
	return sum, nil
}

// CheckNorm returns ErrDenormalized when the current norm deviates from 1
// beyond the configured tolerance.
func (s *Store) CheckNorm(ctx context.Context) error {
	norm, err := s.NormSquared(ctx)
	if err != nil {
		return err
	}
	if dev := math.Abs(norm - 1); dev > s.cfg.NormTolerance {
		return fmt.Errorf("%w: |amplitudes|^2 = %.12f", ErrDenormalized, norm)
	}
	return nil
}

// NormDeviation returns the deviation measured after the last gate with norm
// checking enabled.
func (s *Store) NormDeviation() float64 { return s.normDev }

// GatesApplied returns the number of gates applied since construction.
func (s *Store) GatesApplied() uint64 { return s.gates }
