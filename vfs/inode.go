package vfs

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("no such file or directory")
	ErrNotDir       = errors.New("not a directory")
	ErrExist        = errors.New("file exists")
	ErrCycle        = errors.New("mount would create a cycle")
	ErrInvalid      = errors.New("invalid argument")
	ErrPermission   = errors.New("permission denied")
	ErrNotSupported = errors.New("operation not supported")
)

// InodeType tells whether directory operations are meaningful on an inode.
type InodeType uint8

const (
	File InodeType = iota
	Dir
)

func (t InodeType) String() string {
	if t == Dir {
		return "dir"
	}
	return "file"
}

// Kind enumerates the backing stores an inode can have. The set is closed.
type Kind uint8

const (
	KindRoot Kind = iota
	KindMem
	KindAcpi
	KindFramebuffer
	KindPipe
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "rootfs"
	case KindMem:
		return "memfs"
	case KindAcpi:
		return "acpifs"
	case KindFramebuffer:
		return "fbfs"
	case KindPipe:
		return "pipefs"
	case KindUser:
		return "userfs"
	}
	return "unknown"
}

// FileInfo is one entry of a directory listing.
type FileInfo struct {
	Name string
	Type InodeType
}

// Inode is the capability set every node of the namespace implements.
//
// An inode can be reachable from several mount edges and descriptors at
// once, so implementations serialize their own state; no implementation
// holds its lock while blocked.
type Inode interface {
	// WhenMounted is called once when the inode is attached, with its
	// absolute path and the parent it hangs off (nil for a root).
	WhenMounted(path string, parent Inode)
	WhenUmounted()

	Path() string
	Parent() Inode
	Ino() uint64
	Type() InodeType
	Kind() Kind

	ReadAt(offset int64, buf []byte) (int, error)
	WriteAt(offset int64, buf []byte) (int, error)
	Size() (int64, error)
	Ioctl(cmd, arg uint64) (uint64, error)

	Open(name string) (Inode, error)
	Create(name string, typ InodeType) (Inode, error)
	List() ([]FileInfo, error)
}

// Mounter is implemented by directories that accept mount edges.
type Mounter interface {
	Inode
	Mount(name string, child Inode) error
	Unmount(name string) (Inode, error)
}
