package statevec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/hqsim/hqsim/statevec/storage"
)

// FlushPolicy names the durability discipline applied at Release.
type FlushPolicy int

const (
	// WriteThrough flushes a dirty block to its tier synchronously at release
	// time. At any quiescent point every block's tier copy matches its
	// in-memory content, which is what makes checkpoint commit ordering and
	// group rollback arguments hold. Alternate policies must preserve
	// flush-before-checkpoint-commit ordering.
	WriteThrough FlushPolicy = iota
)

// BlockManager owns the resident block set. It enforces the block budget,
// decides eviction and tier placement, and guarantees write-through
// durability. Residency never exceeds the budget after any operation.
type BlockManager struct {
	qubitCount  uint32
	blockBits   uint32
	totalBlocks uint64
	budget      int
	policy      FlushPolicy
	tiers       []storage.Tier
	resident    map[uint64]*Block
	tierOf      map[uint64]int // assigned tier for every block flushed at least once
	clock       uint64
	retries     uint64
	frame       []byte // scratch encode/flush buffer
}

// NewBlockManager validates the budget against cfg's largest registered gate
// and returns a manager over the given tier hierarchy (fastest first).
func NewBlockManager(cfg *Config, tiers []storage.Tier) (*BlockManager, error) {
	cfg = cfg.OrDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(tiers) != len(cfg.Tiers) {
		return nil, fmt.Errorf("statevec: %d tiers opened for %d tier specs", len(tiers), len(cfg.Tiers))
	}
	return &BlockManager{
		qubitCount:  cfg.QubitCount,
		blockBits:   cfg.BlockBits,
		totalBlocks: cfg.TotalBlocks(),
		budget:      cfg.BudgetBlocks(),
		policy:      WriteThrough,
		tiers:       tiers,
		resident:    make(map[uint64]*Block),
		tierOf:      make(map[uint64]int),
		retries:     cfg.RetryAttempts,
		frame:       make([]byte, storage.FrameSize(cfg.BlockBits)),
	}, nil
}

// BudgetBlocks returns the resident block budget.
func (m *BlockManager) BudgetBlocks() int { return m.budget }

// ResidentCount returns the current resident block count.
func (m *BlockManager) ResidentCount() int { return len(m.resident) }

// DirtyCount returns the number of resident blocks with unflushed writes.
// Under WriteThrough this is zero at every quiescent point.
func (m *BlockManager) DirtyCount() int {
	n := 0
	for _, b := range m.resident {
		if b.dirty {
			n++
		}
	}
	return n
}

// Resident returns the resident block indices in ascending order.
func (m *BlockManager) Resident() []uint64 {
	out := make([]uint64, 0, len(m.resident))
	for idx := range m.resident {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Materialized reports whether the block has ever been flushed to a tier.
// Unmaterialized blocks hold only zero amplitudes.
func (m *BlockManager) Materialized(index uint64) bool {
	if _, ok := m.tierOf[index]; ok {
		return true
	}
	b, ok := m.resident[index]
	return ok && (b.dirty || b.tier != tierUnassigned)
}

// Acquire returns a handle to the block, loading it from its tier (or
// zero-initializing it on first access) and evicting the least-recently-used
// unpinned block first when at budget. Recency ties break by ascending index.
func (m *BlockManager) Acquire(ctx context.Context, index uint64) (*Block, error) {
	if index >= m.totalBlocks {
		return nil, fmt.Errorf("statevec: block index %d out of range (%d blocks)", index, m.totalBlocks)
	}
	if b, ok := m.resident[index]; ok {
		m.clock++
		b.stamp = m.clock
		return b, nil
	}
	if err := m.evictUntil(ctx, m.budget-1); err != nil {
		return nil, err
	}
	b := &Block{index: index, amps: make([]complex128, 1<<m.blockBits), tier: tierUnassigned}
	if ti, ok := m.tierOf[index]; ok {
		frame, err := m.readFrame(ctx, ti, index)
		if err != nil {
			return nil, err
		}
		if err := storage.DecodeFrame(frame, m.qubitCount, m.blockBits, index, b.amps); err != nil {
			return nil, err
		}
		b.tier = ti
		m.promote(ctx, b, frame)
	}
	m.clock++
	b.stamp = m.clock
	m.resident[index] = b
	return b, nil
}

// AcquireGroup pins all listed blocks resident simultaneously for the
// duration of a multi-block group update. Pinned blocks are never evicted.
func (m *BlockManager) AcquireGroup(ctx context.Context, indices []uint64) ([]*Block, error) {
	if len(indices) > m.budget {
		return nil, fmt.Errorf("%w: group of %d blocks exceeds budget %d", ErrBudgetTooSmall, len(indices), m.budget)
	}
	blocks := make([]*Block, len(indices))
	// Pin the already-resident members first so loading the rest cannot
	// evict them.
	for i, idx := range indices {
		if b, ok := m.resident[idx]; ok {
			m.clock++
			b.stamp = m.clock
			b.pins++
			blocks[i] = b
		}
	}
	for i, idx := range indices {
		if blocks[i] != nil {
			continue
		}
		b, err := m.Acquire(ctx, idx)
		if err != nil {
			for _, held := range blocks {
				if held != nil {
					held.pins--
				}
			}
			return nil, err
		}
		b.pins++
		blocks[i] = b
	}
	return blocks, nil
}

// Release marks the handle dirty if the caller wrote through it. Under
// WriteThrough a dirty release flushes synchronously before returning; the
// block stays resident.
func (m *BlockManager) Release(ctx context.Context, b *Block, dirty bool) error {
	if dirty {
		b.dirty = true
	}
	if b.dirty && m.policy == WriteThrough {
		return m.flush(ctx, b)
	}
	return nil
}

// ReleaseGroup unpins and releases every block of a group update.
func (m *BlockManager) ReleaseGroup(ctx context.Context, blocks []*Block, dirty bool) error {
	var firstErr error
	for _, b := range blocks {
		b.pins--
		if err := m.Release(ctx, b, dirty); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FlushAll drains the dirty set in ascending index order. Already-clean
// blocks are no-ops, so the checkpoint flush phase is idempotent.
func (m *BlockManager) FlushAll(ctx context.Context) error {
	indices := make([]uint64, 0, len(m.resident))
	for idx, b := range m.resident {
		if b.dirty {
			indices = append(indices, idx)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, idx := range indices {
		if err := m.flush(ctx, m.resident[idx]); err != nil {
			return err
		}
	}
	return nil
}

// BlockTable returns (index, tier) for every materialized block, ascending.
// The checkpoint manifest persists this table.
func (m *BlockManager) BlockTable() []BlockLocation {
	out := make([]BlockLocation, 0, len(m.tierOf))
	for idx, ti := range m.tierOf {
		out = append(out, BlockLocation{Index: idx, Tier: ti})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// restoreTable seeds the tier assignment table on resume.
func (m *BlockManager) restoreTable(table []BlockLocation) error {
	for _, loc := range table {
		if loc.Index >= m.totalBlocks || loc.Tier < 0 || loc.Tier >= len(m.tiers) {
			return fmt.Errorf("%w: block table entry (index=%d tier=%d)", ErrCorruptCheckpoint, loc.Index, loc.Tier)
		}
		m.tierOf[loc.Index] = loc.Tier
	}
	return nil
}

// reconcileTiers seeds tier assignments for blocks flushed after the block
// table was committed. Write-through keeps every materialized block readable
// in a tier, so an occupied slot missing from the table belongs to a gate
// whose flushes completed after the manifest commit; without this pass such a
// block would read as zeros and its amplitude mass would silently vanish.
// Probing stops once every tier's occupancy count is accounted for, so a
// fresh table costs no tier IO.
func (m *BlockManager) reconcileTiers(ctx context.Context) error {
	counted := make([]int64, len(m.tiers))
	for _, ti := range m.tierOf {
		counted[ti]++
	}
	var missing int64
	for ti, t := range m.tiers {
		if extra := t.Stats().Blocks - counted[ti]; extra > 0 {
			missing += extra
		}
	}
	for index := uint64(0); index < m.totalBlocks && missing > 0; index++ {
		if _, ok := m.tierOf[index]; ok {
			continue
		}
		for ti, t := range m.tiers {
			ok, err := t.Contains(ctx, index)
			if err != nil {
				return err
			}
			if ok {
				logrus.Debugf("statevec: block %d found on tier %d past the block table", index, ti)
				m.tierOf[index] = ti
				missing--
				break
			}
		}
	}
	return nil
}

// evictUntil evicts least-recently-used unpinned blocks until at most max
// remain resident.
func (m *BlockManager) evictUntil(ctx context.Context, max int) error {
	for len(m.resident) > max {
		victim := m.selectVictim()
		if victim == nil {
			return fmt.Errorf("%w: all %d resident blocks pinned", ErrBudgetTooSmall, len(m.resident))
		}
		if victim.dirty {
			if err := m.flush(ctx, victim); err != nil {
				return err
			}
		}
		logrus.Debugf("statevec: evicting block %d (stamp %d)", victim.index, victim.stamp)
		delete(m.resident, victim.index)
	}
	return nil
}

// selectVictim picks the unpinned block with the oldest stamp, ties broken
// by ascending block index to keep tier IO monotonic on sequential media.
func (m *BlockManager) selectVictim() *Block {
	var victim *Block
	for _, b := range m.resident {
		if b.pins > 0 {
			continue
		}
		if victim == nil || b.stamp < victim.stamp ||
			(b.stamp == victim.stamp && b.index < victim.index) {
			victim = b
		}
	}
	return victim
}

// flush encodes the block and writes it through to its assigned tier,
// assigning the fastest tier with free capacity on first flush.
func (m *BlockManager) flush(ctx context.Context, b *Block) error {
	if err := storage.EncodeFrame(m.frame, m.qubitCount, m.blockBits, b.index, b.amps); err != nil {
		return err
	}
	if b.tier == tierUnassigned {
		ti, err := m.assignTier(ctx, b.index)
		if err != nil {
			return err
		}
		b.tier = ti
	}
	if err := m.writeFrame(ctx, b.tier, b.index, m.frame); err != nil {
		return err
	}
	m.tierOf[b.index] = b.tier
	b.dirty = false
	return nil
}

// assignTier returns the fastest tier with free capacity.
func (m *BlockManager) assignTier(ctx context.Context, index uint64) (int, error) {
	for ti, t := range m.tiers {
		st := t.Stats()
		if st.Capacity < 0 || st.Blocks < st.Capacity {
			return ti, nil
		}
	}
	return 0, fmt.Errorf("statevec: no tier has capacity for block %d", index)
}

// promote moves a block just loaded from a slow tier into a faster one when
// capacity has opened, reusing the frame already read. Promotion failure is
// not fatal; the old assignment stays authoritative.
func (m *BlockManager) promote(ctx context.Context, b *Block, frame []byte) {
	for ti := 0; ti < b.tier; ti++ {
		st := m.tiers[ti].Stats()
		if st.Capacity >= 0 && st.Blocks >= st.Capacity {
			continue
		}
		if err := m.writeFrame(ctx, ti, b.index, frame); err != nil {
			logrus.Warnf("statevec: promote block %d to tier %d: %v", b.index, ti, err)
			return
		}
		old := b.tier
		b.tier = ti
		m.tierOf[b.index] = ti
		if err := m.tiers[old].Remove(ctx, b.index); err != nil {
			logrus.Warnf("statevec: stale copy of block %d left on tier %d: %v", b.index, old, err)
		}
		logrus.Debugf("statevec: promoted block %d from tier %d to %d", b.index, old, ti)
		return
	}
}

// readFrame reads with bounded exponential backoff; ErrBlockNotFound is
// permanent since retrying cannot make an absent block appear.
func (m *BlockManager) readFrame(ctx context.Context, tier int, index uint64) ([]byte, error) {
	var frame []byte
	op := func() error {
		f, err := m.tiers[tier].ReadBlock(ctx, index)
		if errors.Is(err, storage.ErrBlockNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		frame = f
		return nil
	}
	if err := backoff.RetryNotify(op, m.newBackOff(ctx), m.retryLogger("read", tier, index)); err != nil {
		if errors.Is(err, storage.ErrBlockNotFound) {
			return nil, fmt.Errorf("statevec: read block %d from tier %d: %w", index, tier, err)
		}
		return nil, fmt.Errorf("%w: read block %d from tier %d: %w", ErrTierIO, index, tier, err)
	}
	return frame, nil
}

func (m *BlockManager) writeFrame(ctx context.Context, tier int, index uint64, frame []byte) error {
	op := func() error {
		err := m.tiers[tier].WriteBlock(ctx, index, frame)
		if errors.Is(err, storage.ErrTierFull) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.RetryNotify(op, m.newBackOff(ctx), m.retryLogger("write", tier, index)); err != nil {
		if errors.Is(err, storage.ErrTierFull) {
			return fmt.Errorf("statevec: write block %d to tier %d: %w", index, tier, err)
		}
		return fmt.Errorf("%w: write block %d to tier %d: %w", ErrTierIO, index, tier, err)
	}
	return nil
}

func (m *BlockManager) newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), m.retries), ctx)
}

func (m *BlockManager) retryLogger(op string, tier int, index uint64) backoff.Notify {
	return func(err error, wait time.Duration) {
		logrus.Warnf("statevec: tier %d %s of block %d failed, retrying in %s: %v", tier, op, index, wait, err)
	}
}
