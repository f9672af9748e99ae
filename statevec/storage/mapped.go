package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

const (
	// mappedHeaderSize is the fixed superblock size at the front of a slot file.
	mappedHeaderSize = 64

	// mappedMagic identifies a valid slot file.
	mappedMagic = "HQSV"

	// mappedVersion is the current slot file format version.
	mappedVersion uint16 = 1
)

// mappedHeader is the slot file superblock, padded to mappedHeaderSize.
type mappedHeader struct {
	Magic      [4]byte
	Version    uint16
	_          uint16
	QubitCount uint32
	BlockBits  uint32
	FrameSize  uint64
	NumSlots   uint64
	Reserved   [32]byte
}

// MappedTier is a Tier backed by a single sparse slot file mapped read-write.
// Slot i holds the frame for block index i at a fixed offset, so untouched
// blocks cost no disk space on filesystems with hole support. Writes are
// synced (msync) before returning, per the write-through policy.
type MappedTier struct {
	mu       sync.Mutex
	f        *os.File
	data     mmap.MMap
	frameLen int
	numSlots uint64
	occupied int64
	capacity int64 // logical block capacity, -1 for unlimited
}

// OpenMapped opens or creates a slot file for the given store geometry.
// An existing file must match the geometry exactly. capacity bounds the
// number of occupied slots (-1 or 0 for all slots).
func OpenMapped(path string, qubitCount, blockBits uint32, capacity int64) (*MappedTier, error) {
	numSlots := uint64(1) << (qubitCount - blockBits)
	frameLen := FrameSize(blockBits)
	total := int64(mappedHeaderSize) + int64(numSlots)*int64(frameLen)
	if capacity <= 0 || capacity > int64(numSlots) {
		capacity = int64(numSlots)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	fresh := info.Size() == 0
	if fresh {
		if err := f.Truncate(total); err != nil {
			f.Close()
			return nil, err
		}
		h := mappedHeader{
			Version:    mappedVersion,
			QubitCount: qubitCount,
			BlockBits:  blockBits,
			FrameSize:  uint64(frameLen),
			NumSlots:   numSlots,
		}
		copy(h.Magic[:], mappedMagic)
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
			f.Close()
			return nil, err
		}
		if _, err := f.WriteAt(buf.Bytes(), 0); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
	} else if info.Size() != total {
		f.Close()
		return nil, fmt.Errorf("storage: slot file %s is %d bytes, want %d", path, info.Size(), total)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	adviseRandom(m)

	t := &MappedTier{
		f:        f,
		data:     m,
		frameLen: frameLen,
		numSlots: numSlots,
		capacity: capacity,
	}
	if !fresh {
		if err := t.validateHeader(qubitCount, blockBits); err != nil {
			t.Close()
			return nil, err
		}
		for i := uint64(0); i < numSlots; i++ {
			if frameOccupied(t.slot(i)[:4]) {
				t.occupied++
			}
		}
	}
	return t, nil
}

func (t *MappedTier) validateHeader(qubitCount, blockBits uint32) error {
	var h mappedHeader
	r := bytes.NewReader(t.data[:mappedHeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return err
	}
	if string(h.Magic[:]) != mappedMagic {
		return errors.New("storage: invalid slot file magic")
	}
	if h.Version != mappedVersion {
		return fmt.Errorf("storage: unsupported slot file version %d", h.Version)
	}
	if h.QubitCount != qubitCount || h.BlockBits != blockBits {
		return fmt.Errorf("%w: slot file geometry (qubits=%d bits=%d), want (qubits=%d bits=%d)",
			ErrFrameMismatch, h.QubitCount, h.BlockBits, qubitCount, blockBits)
	}
	return nil
}

// slot returns the raw frame region for index. Caller holds t.mu.
func (t *MappedTier) slot(index uint64) []byte {
	off := mappedHeaderSize + int64(index)*int64(t.frameLen)
	return t.data[off : off+int64(t.frameLen)]
}

// Kind returns KindMapped.
func (t *MappedTier) Kind() Kind { return KindMapped }

// ReadBlock returns a copy of the frame at slot index.
func (t *MappedTier) ReadBlock(_ context.Context, index uint64) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.data == nil || index >= t.numSlots {
		return nil, ErrBlockNotFound
	}
	s := t.slot(index)
	if !frameOccupied(s[:4]) {
		return nil, ErrBlockNotFound
	}
	out := make([]byte, t.frameLen)
	copy(out, s)
	return out, nil
}

// WriteBlock copies frame into slot index and syncs the mapping.
func (t *MappedTier) WriteBlock(_ context.Context, index uint64, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.data == nil {
		return errors.New("storage: mapped tier closed")
	}
	if index >= t.numSlots {
		return fmt.Errorf("storage: slot index %d out of range (%d slots)", index, t.numSlots)
	}
	if len(frame) != t.frameLen {
		return fmt.Errorf("%w: frame length %d, want %d", ErrFrameMismatch, len(frame), t.frameLen)
	}
	s := t.slot(index)
	occupied := frameOccupied(s[:4])
	if !occupied && t.occupied >= t.capacity {
		return ErrTierFull
	}
	copy(s, frame)
	if !occupied {
		t.occupied++
	}
	return t.data.Flush()
}

// Contains reports whether slot index holds a frame.
func (t *MappedTier) Contains(_ context.Context, index uint64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.data == nil || index >= t.numSlots {
		return false, nil
	}
	return frameOccupied(t.slot(index)[:4]), nil
}

// Remove vacates slot index by zeroing its header.
func (t *MappedTier) Remove(_ context.Context, index uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.data == nil || index >= t.numSlots {
		return nil
	}
	s := t.slot(index)
	if !frameOccupied(s[:4]) {
		return nil
	}
	for i := 0; i < FrameHeaderSize; i++ {
		s[i] = 0
	}
	t.occupied--
	return t.data.Flush()
}

// Stats returns occupied slot count and logical capacity.
func (t *MappedTier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Kind: KindMapped, Blocks: t.occupied, Capacity: t.capacity}
}

// Close unmaps and closes the slot file.
func (t *MappedTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.data != nil {
		if err := t.data.Unmap(); err != nil {
			return err
		}
		t.data = nil
	}
	if t.f != nil {
		err := t.f.Close()
		t.f = nil
		return err
	}
	return nil
}
