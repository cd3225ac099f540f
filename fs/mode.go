package fs

import "fmt"

// OpenMode is the access a descriptor was opened with.
type OpenMode uint8

const (
	Read OpenMode = iota
	Write
	ReadWrite
)

// OpenModeFrom converts the raw mode passed by a syscall. Any other value
// means the caller's arguments are corrupt, and it panics.
func OpenModeFrom(v uint64) OpenMode {
	switch v {
	case 0:
		return Read
	case 1:
		return Write
	case 2:
		return ReadWrite
	}
	panic(fmt.Sprintf("invalid open mode %d", v))
}

func (m OpenMode) CanRead() bool {
	return m == Read || m == ReadWrite
}

func (m OpenMode) CanWrite() bool {
	return m == Write || m == ReadWrite
}

func (m OpenMode) String() string {
	switch m {
	case Read:
		return "r"
	case Write:
		return "w"
	case ReadWrite:
		return "rw"
	}
	return fmt.Sprintf("OpenMode(%d)", uint8(m))
}
