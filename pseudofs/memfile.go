package pseudofs

import (
	"fmt"
	"sync"

	"github.com/reduct-os/kvfs/vfs"
)

// MaxMemFileSize bounds how far a MemFile may grow.
const MaxMemFileSize = 64 << 20

// MemFile is a regular file held in kernel memory.
type MemFile struct {
	vfs.Base

	mu   sync.Mutex
	data []byte
}

func NewMemFile() *MemFile {
	f := &MemFile{}
	f.InitBase()
	return f
}

func (f *MemFile) Kind() vfs.Kind {
	return vfs.KindMem
}

func (f *MemFile) ReadAt(offset int64, buf []byte) (int, error) {
	if offset < 0 {
		return 0, vfs.ErrInvalid
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Accessed()
	if offset >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(buf, f.data[offset:]), nil
}

// WriteAt stores buf at offset, zero filling any gap past the end.
func (f *MemFile) WriteAt(offset int64, buf []byte) (int, error) {
	if offset < 0 {
		return 0, vfs.ErrInvalid
	}

	if offset > MaxMemFileSize-int64(len(buf)) {
		return 0, fmt.Errorf("write of %d bytes at %d past %d: %w", len(buf), offset, MaxMemFileSize, vfs.ErrInvalid)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	end := offset + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	n := copy(f.data[offset:], buf)
	f.Touch()
	return n, nil
}

func (f *MemFile) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data)), nil
}
