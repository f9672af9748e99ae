package statevec

// tierUnassigned marks a block that has never been flushed to any tier.
const tierUnassigned = -1

// Block is one resident partition of the amplitude index space. Its contents
// are exclusively owned by the BlockManager while resident; callers reach the
// amplitudes only through an acquired handle and must release before the
// enclosing operation returns.
type Block struct {
	index uint64
	amps  []complex128
	dirty bool
	pins  int
	stamp uint64 // recency, monotonic per acquire
	tier  int    // assigned tier, tierUnassigned until first flush
}

// Index returns the block's dense 0-based index.
func (b *Block) Index() uint64 { return b.index }

// Amplitudes returns the block's amplitude slice. Writes through the slice
// must be followed by a Release with dirty=true.
func (b *Block) Amplitudes() []complex128 { return b.amps }
