package abi

import (
	"fmt"
	"math"

	"github.com/reduct-os/kvfs/vfs"
)

// NameList is the flat encoding of a directory listing returned by a
// driver: a u32 entry count followed by, for each entry, a type byte, a u16
// name length and the name bytes. Names longer than a u16 can count are
// truncated.
type NameList []vfs.FileInfo

// entryHeaderSize is the type byte and the name length.
const entryHeaderSize = 3

func encodedName(name string) string {
	if len(name) > math.MaxUint16 {
		return name[:math.MaxUint16]
	}
	return name
}

func (l NameList) Size() int {
	s := 4
	for _, e := range l {
		s += entryHeaderSize + len(encodedName(e.Name))
	}
	return s
}

func (l NameList) Encode(pkt []byte) {
	le.PutUint32(pkt[0:4], uint32(len(l)))
	off := 4
	for _, e := range l {
		name := encodedName(e.Name)
		pkt[off] = byte(e.Type)
		le.PutUint16(pkt[off+1:off+3], uint16(len(name)))
		off += entryHeaderSize
		off += copy(pkt[off:], name)
	}
}

type NameListDecoder []byte

func (r NameListDecoder) IsInvalid() bool {
	return len(r) < 4
}

func (r NameListDecoder) Count() uint32 {
	return le.Uint32(r[0:4])
}

func (r NameListDecoder) Entries() ([]vfs.FileInfo, error) {
	if r.IsInvalid() {
		return nil, fmt.Errorf("name list: short buffer")
	}
	n := int(r.Count())
	if fit := (len(r) - 4) / entryHeaderSize; n > fit {
		return nil, fmt.Errorf("name list: %d entries in %d bytes", n, len(r))
	}
	entries := make([]vfs.FileInfo, 0, n)
	off := 4
	for i := 0; i < n; i++ {
		if off+entryHeaderSize > len(r) {
			return nil, fmt.Errorf("name list: entry %d truncated", i)
		}
		typ := vfs.InodeType(r[off])
		l := int(le.Uint16(r[off+1 : off+3]))
		off += entryHeaderSize
		if off+l > len(r) {
			return nil, fmt.Errorf("name list: name %d truncated", i)
		}
		entries = append(entries, vfs.FileInfo{Name: string(r[off : off+l]), Type: typ})
		off += l
	}
	return entries, nil
}
