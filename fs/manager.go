package fs

import (
	"sync"
	"sync/atomic"

	"github.com/reduct-os/kvfs/vfs"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Descriptors 0, 1 and 2 are reserved for the standard streams.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2

	firstFd = 3
)

// File is one open descriptor: an inode, the access it was opened with and
// the cursor used as the offset of reads and writes.
type File struct {
	Inode vfs.Inode
	Mode  OpenMode

	mu     sync.Mutex
	offset int64
}

func (f *File) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

func (f *File) SetOffset(offset int64) {
	f.mu.Lock()
	f.offset = offset
	f.mu.Unlock()
}

// Manager is the descriptor table of one process, or of several processes
// after a fork, which share it.
type Manager struct {
	lock  sync.Mutex
	cwd   vfs.Inode
	files map[int]*File

	// nextFd must be accessed atomically.
	nextFd int64
}

func NewManager(cwd vfs.Inode) *Manager {
	return &Manager{
		cwd:    cwd,
		files:  map[int]*File{},
		nextFd: firstFd,
	}
}

// Add installs inode under a fresh descriptor. Descriptors are never
// reused.
func (m *Manager) Add(inode vfs.Inode, mode OpenMode) int {
	fd := int(atomic.AddInt64(&m.nextFd, 1) - 1)
	m.set(fd, inode, mode)
	return fd
}

func (m *Manager) set(fd int, inode vfs.Inode, mode OpenMode) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.files[fd] = &File{Inode: inode, Mode: mode}
}

func (m *Manager) Get(fd int) (*File, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	f, ok := m.files[fd]
	return f, ok
}

func (m *Manager) Remove(fd int) (*File, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	f, ok := m.files[fd]
	if ok {
		delete(m.files, fd)
	}
	return f, ok
}

// Fds lists the open descriptors in increasing order.
func (m *Manager) Fds() []int {
	m.lock.Lock()
	fds := maps.Keys(m.files)
	m.lock.Unlock()

	slices.Sort(fds)
	return fds
}

// Refs counts the descriptors that refer to inode.
func (m *Manager) Refs(inode vfs.Inode) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := 0
	for _, f := range m.files {
		if f.Inode == inode {
			n++
		}
	}
	return n
}

func (m *Manager) Cwd() vfs.Inode {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.cwd
}

func (m *Manager) SetCwd(dir vfs.Inode) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cwd = dir
}
