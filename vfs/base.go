package vfs

import (
	"sync"
	"sync/atomic"
	"time"
)

// nextIno allocates inode numbers. Must be accessed atomically.
var nextIno uint64

// Base carries the bookkeeping shared by every inode: the cached mount path,
// the parent link, the inode number and timestamps. The data capabilities
// default to empty results and the directory capabilities to ErrNotDir;
// concrete inodes override what they support. InitBase must be called by
// the constructor.
type Base struct {
	bmu    sync.Mutex
	path   string
	parent Inode
	ino    uint64
	ctime  time.Time
	mtime  time.Time
	atime  time.Time
}

func (b *Base) InitBase() {
	now := time.Now()
	b.ino = atomic.AddUint64(&nextIno, 1)
	b.ctime, b.mtime, b.atime = now, now, now
}

func (b *Base) WhenMounted(path string, parent Inode) {
	b.bmu.Lock()
	defer b.bmu.Unlock()
	b.path = path
	b.parent = parent
}

func (b *Base) WhenUmounted() {
	b.bmu.Lock()
	defer b.bmu.Unlock()
	b.parent = nil
}

func (b *Base) Path() string {
	b.bmu.Lock()
	defer b.bmu.Unlock()
	return b.path
}

func (b *Base) Parent() Inode {
	b.bmu.Lock()
	defer b.bmu.Unlock()
	return b.parent
}

func (b *Base) Ino() uint64 {
	return b.ino
}

func (b *Base) Type() InodeType {
	return File
}

// Touch records a data modification.
func (b *Base) Touch() {
	b.bmu.Lock()
	b.mtime = time.Now()
	b.bmu.Unlock()
}

// Accessed records a data access.
func (b *Base) Accessed() {
	b.bmu.Lock()
	b.atime = time.Now()
	b.bmu.Unlock()
}

// Times returns the modification, access and status change times.
func (b *Base) Times() (mtime, atime, ctime time.Time) {
	b.bmu.Lock()
	defer b.bmu.Unlock()
	return b.mtime, b.atime, b.ctime
}

func (b *Base) ReadAt(offset int64, buf []byte) (int, error) {
	return 0, nil
}

func (b *Base) WriteAt(offset int64, buf []byte) (int, error) {
	return 0, nil
}

func (b *Base) Size() (int64, error) {
	return 0, nil
}

func (b *Base) Ioctl(cmd, arg uint64) (uint64, error) {
	return 0, nil
}

func (b *Base) Open(name string) (Inode, error) {
	return nil, ErrNotDir
}

func (b *Base) Create(name string, typ InodeType) (Inode, error) {
	return nil, ErrNotDir
}

func (b *Base) List() ([]FileInfo, error) {
	return nil, ErrNotDir
}

type timestamper interface {
	Times() (mtime, atime, ctime time.Time)
}

// GetAttributes gathers the status attributes of an inode.
func GetAttributes(i Inode) (*Attributes, error) {
	size, err := i.Size()
	if err != nil {
		return nil, err
	}

	a := &Attributes{}
	a.SetInodeNumber(i.Ino())
	a.SetFileType(FileTypeOf(i))
	a.SetLinkCount(1)
	a.SetSizeBytes(uint64(size))
	a.SetDeviceNumber(uint64(i.Kind()))
	a.SetOwner(0, 0)
	if i.Type() == Dir {
		a.SetPermissions(PermissionsRead | PermissionsWrite | PermissionsExecute)
	} else {
		a.SetPermissions(PermissionsRead | PermissionsWrite)
	}
	if ts, ok := i.(timestamper); ok {
		m, at, c := ts.Times()
		a.SetLastDataModificationTime(m)
		a.SetAccessTime(at)
		a.SetLastStatusChangeTime(c)
	}
	return a, nil
}
