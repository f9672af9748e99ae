package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	// FrameHeaderSize is the fixed per-block header:
	// qubitCount u32, blockBits u32, blockIndex u64, checksum u64.
	FrameHeaderSize = 24
)

var (
	// ErrChecksumMismatch indicates the frame payload does not match its
	// stored checksum.
	ErrChecksumMismatch = errors.New("storage: frame checksum mismatch")

	// ErrFrameMismatch indicates the frame header disagrees with the
	// expected store geometry or block index.
	ErrFrameMismatch = errors.New("storage: frame header mismatch")
)

// FrameSize returns the framed byte size of one block: header plus
// 2^blockBits complex128 amplitudes stored as (real f64, imag f64) pairs,
// little-endian.
func FrameSize(blockBits uint32) int {
	return FrameHeaderSize + (16 << blockBits)
}

// EncodeFrame writes the framed block into dst, which must be exactly
// FrameSize(blockBits) long. The checksum covers the amplitude payload only.
func EncodeFrame(dst []byte, qubitCount, blockBits uint32, index uint64, amps []complex128) error {
	if len(amps) != 1<<blockBits {
		return fmt.Errorf("%w: %d amplitudes for blockBits=%d", ErrFrameMismatch, len(amps), blockBits)
	}
	if len(dst) != FrameSize(blockBits) {
		return fmt.Errorf("%w: dst length %d, want %d", ErrFrameMismatch, len(dst), FrameSize(blockBits))
	}
	payload := dst[FrameHeaderSize:]
	for i, a := range amps {
		binary.LittleEndian.PutUint64(payload[i*16:], math.Float64bits(real(a)))
		binary.LittleEndian.PutUint64(payload[i*16+8:], math.Float64bits(imag(a)))
	}
	binary.LittleEndian.PutUint32(dst[0:], qubitCount)
	binary.LittleEndian.PutUint32(dst[4:], blockBits)
	binary.LittleEndian.PutUint64(dst[8:], index)
	binary.LittleEndian.PutUint64(dst[16:], xxhash.Sum64(payload))
	return nil
}

// DecodeFrame validates the frame header and checksum against the expected
// geometry and decodes the payload into dst (len 2^blockBits).
func DecodeFrame(frame []byte, qubitCount, blockBits uint32, index uint64, dst []complex128) error {
	if len(frame) != FrameSize(blockBits) {
		return fmt.Errorf("%w: frame length %d, want %d", ErrFrameMismatch, len(frame), FrameSize(blockBits))
	}
	if len(dst) != 1<<blockBits {
		return fmt.Errorf("%w: dst length %d, want %d", ErrFrameMismatch, len(dst), 1<<blockBits)
	}
	gotQubits := binary.LittleEndian.Uint32(frame[0:])
	gotBits := binary.LittleEndian.Uint32(frame[4:])
	gotIndex := binary.LittleEndian.Uint64(frame[8:])
	if gotQubits != qubitCount || gotBits != blockBits || gotIndex != index {
		return fmt.Errorf("%w: header (qubits=%d bits=%d index=%d), want (qubits=%d bits=%d index=%d)",
			ErrFrameMismatch, gotQubits, gotBits, gotIndex, qubitCount, blockBits, index)
	}
	payload := frame[FrameHeaderSize:]
	if got, want := xxhash.Sum64(payload), binary.LittleEndian.Uint64(frame[16:]); got != want {
		return fmt.Errorf("%w: block %d", ErrChecksumMismatch, index)
	}
	for i := range dst {
		re := math.Float64frombits(binary.LittleEndian.Uint64(payload[i*16:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(payload[i*16+8:]))
		dst[i] = complex(re, im)
	}
	return nil
}

// frameOccupied reports whether a slot-resident frame header describes a
// stored block. A zeroed header (qubitCount 0) marks a vacant slot.
func frameOccupied(header []byte) bool {
	return binary.LittleEndian.Uint32(header[0:4]) != 0
}
