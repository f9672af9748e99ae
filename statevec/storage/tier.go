package storage

import (
	"context"
	"errors"
)

// Kind identifies a tier implementation.
type Kind string

const (
	KindMemory Kind = "memory"
	KindMapped Kind = "mapped"
	KindRemote Kind = "remote"
)

var (
	// ErrBlockNotFound is returned by ReadBlock when the tier holds no frame
	// for the requested index.
	ErrBlockNotFound = errors.New("storage: block not found in tier")

	// ErrTierFull is returned by WriteBlock when the tier is at capacity and
	// the index is not already present. It is a permanent condition for the
	// write in question, never retried.
	ErrTierFull = errors.New("storage: tier at capacity")
)

// Stats reports usage for a single tier.
type Stats struct {
	Kind     Kind
	Blocks   int64
	Capacity int64 // in blocks, -1 for unlimited
}

// Tier is an addressable block container over one physical medium. Frames are
// opaque to the tier; framing and checksums are handled by the frame codec.
// A block index is bound to at most one frame per tier.
type Tier interface {
	Kind() Kind
	// ReadBlock returns the frame stored for index, or ErrBlockNotFound.
	ReadBlock(ctx context.Context, index uint64) ([]byte, error)
	// WriteBlock stores the frame for index, overwriting any previous frame.
	// The write is durable on the tier's medium when the call returns.
	WriteBlock(ctx context.Context, index uint64, frame []byte) error
	// Contains reports whether the tier holds a frame for index.
	Contains(ctx context.Context, index uint64) (bool, error)
	// Remove discards the frame for index. Removing an absent index is a no-op.
	Remove(ctx context.Context, index uint64) error
	Stats() Stats
	Close() error
}
