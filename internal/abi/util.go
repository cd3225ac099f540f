package abi

import (
	"encoding/binary"
)

var (
	le = binary.LittleEndian
)

// WordSize is the width of one machine word in the records exchanged with
// user space.
const WordSize = 8

// Encoder is implemented by every fixed-layout record that can be written
// into a caller supplied buffer.
type Encoder interface {
	Size() int
	Encode(pkt []byte)
}

func Roundup(x, align int) int {
	return (x + (align - 1)) &^ (align - 1)
}

func Roundup64(x, align int64) int64 {
	return (x + (align - 1)) &^ (align - 1)
}

// Marshal allocates a buffer of the record's size and encodes it.
func Marshal(e Encoder) []byte {
	pkt := make([]byte, e.Size())
	e.Encode(pkt)
	return pkt
}

// Blocks returns the number of 512 byte blocks needed for size bytes.
func Blocks(size uint64) uint64 {
	return uint64(Roundup64(int64(size), 512) / 512)
}
