package storage

import (
	"context"
	"sync"
)

// MemoryTier is a Tier backed by an in-process buffer. It is the fastest
// tier and typically the smallest; capacity is expressed in blocks.
type MemoryTier struct {
	mu       sync.Mutex
	frames   map[uint64][]byte
	capacity int64 // -1 for unlimited
}

// NewMemoryTier creates a memory tier holding at most capacity blocks
// (-1 or 0 for unlimited).
func NewMemoryTier(capacity int64) *MemoryTier {
	if capacity == 0 {
		capacity = -1
	}
	return &MemoryTier{
		frames:   make(map[uint64][]byte),
		capacity: capacity,
	}
}

// Kind returns KindMemory.
func (t *MemoryTier) Kind() Kind { return KindMemory }

// ReadBlock returns a copy of the stored frame.
func (t *MemoryTier) ReadBlock(_ context.Context, index uint64) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.frames[index]
	if !ok {
		return nil, ErrBlockNotFound
	}
	out := make([]byte, len(f))
	copy(out, f)
	return out, nil
}

// WriteBlock stores a copy of frame. Returns ErrTierFull when at capacity
// and index is not already present.
func (t *MemoryTier) WriteBlock(_ context.Context, index uint64, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.frames[index]; !ok {
		if t.capacity >= 0 && int64(len(t.frames)) >= t.capacity {
			return ErrTierFull
		}
	}
	stored := make([]byte, len(frame))
	copy(stored, frame)
	t.frames[index] = stored
	return nil
}

// Contains reports whether index is stored.
func (t *MemoryTier) Contains(_ context.Context, index uint64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.frames[index]
	return ok, nil
}

// Remove discards the frame for index.
func (t *MemoryTier) Remove(_ context.Context, index uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.frames, index)
	return nil
}

// Stats returns block count and capacity.
func (t *MemoryTier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Kind: KindMemory, Blocks: int64(len(t.frames)), Capacity: t.capacity}
}

// Close releases the buffer.
func (t *MemoryTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = nil
	return nil
}
