package abi

import (
	"github.com/reduct-os/kvfs/vfs"
)

// File type bits of Stat.Mode.
const (
	S_IFMT   = 0170000
	S_IFIFO  = 0010000
	S_IFCHR  = 0020000
	S_IFDIR  = 0040000
	S_IFREG  = 0100000
	S_IFLNK  = 0120000
	S_IFSOCK = 0140000
)

// Stat is the file status record handed back to user space. The layout is
// that of the C structure with natural alignment: the padding after Mode,
// BlkSize and each nanosecond field is part of the format.
type Stat struct {
	Dev       uint64
	Ino       uint64
	Mode      uint16
	Nlink     uint32
	UID       uint32
	GID       uint32
	FileSize  uint64
	BlkSize   uint32
	Blocks    uint64
	Mtime     uint64
	MtimeNsec uint32
	Atime     uint64
	AtimeNsec uint32
	Ctime     uint64
	CtimeNsec uint32
}

const (
	statDevOffset       = 0
	statInoOffset       = 8
	statModeOffset      = 16
	statNlinkOffset     = 20
	statUIDOffset       = 24
	statGIDOffset       = 28
	statSizeOffset      = 32
	statBlkSizeOffset   = 40
	statBlocksOffset    = 48
	statMtimeOffset     = 56
	statMtimeNsecOffset = 64
	statAtimeOffset     = 72
	statAtimeNsecOffset = 80
	statCtimeOffset     = 88
	statCtimeNsecOffset = 96

	StatSize = 104
)

func (s *Stat) Size() int {
	return StatSize
}

func (s *Stat) Encode(pkt []byte) {
	for i := range pkt[:StatSize] {
		pkt[i] = 0
	}
	le.PutUint64(pkt[statDevOffset:], s.Dev)
	le.PutUint64(pkt[statInoOffset:], s.Ino)
	le.PutUint16(pkt[statModeOffset:], s.Mode)
	le.PutUint32(pkt[statNlinkOffset:], s.Nlink)
	le.PutUint32(pkt[statUIDOffset:], s.UID)
	le.PutUint32(pkt[statGIDOffset:], s.GID)
	le.PutUint64(pkt[statSizeOffset:], s.FileSize)
	le.PutUint32(pkt[statBlkSizeOffset:], s.BlkSize)
	le.PutUint64(pkt[statBlocksOffset:], s.Blocks)
	le.PutUint64(pkt[statMtimeOffset:], s.Mtime)
	le.PutUint32(pkt[statMtimeNsecOffset:], s.MtimeNsec)
	le.PutUint64(pkt[statAtimeOffset:], s.Atime)
	le.PutUint32(pkt[statAtimeNsecOffset:], s.AtimeNsec)
	le.PutUint64(pkt[statCtimeOffset:], s.Ctime)
	le.PutUint32(pkt[statCtimeNsecOffset:], s.CtimeNsec)
}

type StatDecoder []byte

func (r StatDecoder) IsInvalid() bool {
	return len(r) < StatSize
}

func (r StatDecoder) Stat() *Stat {
	return &Stat{
		Dev:       le.Uint64(r[statDevOffset:]),
		Ino:       le.Uint64(r[statInoOffset:]),
		Mode:      le.Uint16(r[statModeOffset:]),
		Nlink:     le.Uint32(r[statNlinkOffset:]),
		UID:       le.Uint32(r[statUIDOffset:]),
		GID:       le.Uint32(r[statGIDOffset:]),
		FileSize:  le.Uint64(r[statSizeOffset:]),
		BlkSize:   le.Uint32(r[statBlkSizeOffset:]),
		Blocks:    le.Uint64(r[statBlocksOffset:]),
		Mtime:     le.Uint64(r[statMtimeOffset:]),
		MtimeNsec: le.Uint32(r[statMtimeNsecOffset:]),
		Atime:     le.Uint64(r[statAtimeOffset:]),
		AtimeNsec: le.Uint32(r[statAtimeNsecOffset:]),
		Ctime:     le.Uint64(r[statCtimeOffset:]),
		CtimeNsec: le.Uint32(r[statCtimeNsecOffset:]),
	}
}

// StatFS is the filesystem statistics record.
type StatFS struct {
	BSize  uint32
	Blocks uint64
	BFree  uint64
	BAvail uint64
}

const (
	statfsBSizeOffset  = 0
	statfsBlocksOffset = 8
	statfsBFreeOffset  = 16
	statfsBAvailOffset = 24

	StatFSSize = 32
)

func (s *StatFS) Size() int {
	return StatFSSize
}

func (s *StatFS) Encode(pkt []byte) {
	for i := range pkt[:StatFSSize] {
		pkt[i] = 0
	}
	le.PutUint32(pkt[statfsBSizeOffset:], s.BSize)
	le.PutUint64(pkt[statfsBlocksOffset:], s.Blocks)
	le.PutUint64(pkt[statfsBFreeOffset:], s.BFree)
	le.PutUint64(pkt[statfsBAvailOffset:], s.BAvail)
}

type StatFSDecoder []byte

func (r StatFSDecoder) IsInvalid() bool {
	return len(r) < StatFSSize
}

func (r StatFSDecoder) StatFS() *StatFS {
	return &StatFS{
		BSize:  le.Uint32(r[statfsBSizeOffset:]),
		Blocks: le.Uint64(r[statfsBlocksOffset:]),
		BFree:  le.Uint64(r[statfsBFreeOffset:]),
		BAvail: le.Uint64(r[statfsBAvailOffset:]),
	}
}

func ModeFromVfs(a *vfs.Attributes) uint16 {
	var mode uint16
	switch a.GetFileType() {
	case vfs.FileTypeDirectory:
		mode = S_IFDIR
	case vfs.FileTypeCharacterDevice:
		mode = S_IFCHR
	case vfs.FileTypeFIFO:
		mode = S_IFIFO
	case vfs.FileTypeSymlink:
		mode = S_IFLNK
	case vfs.FileTypeSocket:
		mode = S_IFSOCK
	default:
		mode = S_IFREG
	}
	if p, ok := a.GetPermissions(); ok {
		mode |= uint16(p.ToMode())
	} else {
		mode |= 0644
	}
	return mode
}

func SizeFromVfs(a *vfs.Attributes) uint64 {
	if s, ok := a.GetSizeBytes(); ok {
		return s
	}
	return 0
}

// StatFromVfs fills a status record from the attributes of an inode.
func StatFromVfs(a *vfs.Attributes) *Stat {
	s := &Stat{
		Ino:      a.GetInodeNumber(),
		Mode:     ModeFromVfs(a),
		Nlink:    a.GetLinkCount(),
		FileSize: SizeFromVfs(a),
		BlkSize:  BlockSize,
	}
	s.Blocks = Blocks(s.FileSize)
	if dev, ok := a.GetDeviceNumber(); ok {
		s.Dev = dev
	}
	if uid, gid, ok := a.GetOwner(); ok {
		s.UID, s.GID = uid, gid
	}
	if t, ok := a.GetLastDataModificationTime(); ok && !t.IsZero() {
		s.Mtime, s.MtimeNsec = uint64(t.Unix()), uint32(t.Nanosecond())
	}
	if t, ok := a.GetAccessTime(); ok && !t.IsZero() {
		s.Atime, s.AtimeNsec = uint64(t.Unix()), uint32(t.Nanosecond())
	}
	if t, ok := a.GetLastStatusChangeTime(); ok && !t.IsZero() {
		s.Ctime, s.CtimeNsec = uint64(t.Unix()), uint32(t.Nanosecond())
	}
	return s
}

// BlockSize is the preferred I/O size reported for every inode.
const BlockSize = 4096

// StatFSFromVfs fills a filesystem statistics record.
func StatFSFromVfs(a *vfs.FSAttributes) *StatFS {
	s := &StatFS{BSize: BlockSize}
	if b, ok := a.GetBlockSize(); ok {
		s.BSize = uint32(b)
	}
	if b, ok := a.GetBlocks(); ok {
		s.Blocks = b
	}
	if b, ok := a.GetFreeBlocks(); ok {
		s.BFree = b
	}
	if b, ok := a.GetAvailableBlocks(); ok {
		s.BAvail = b
	}
	return s
}
