// Package fs is the file descriptor layer of the kernel. A System owns the
// mount tree, the table of per-process descriptor managers and the registry
// of user-space drivers; every syscall names the calling process.
package fs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/reduct-os/kvfs/pseudofs"
	"github.com/reduct-os/kvfs/userfs"
	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
)

var (
	ErrBadDescriptor = fmt.Errorf("bad file descriptor: %w", vfs.ErrNotFound)
	ErrNoProcess     = fmt.Errorf("no descriptor table for process: %w", ErrBadDescriptor)
)

// Mount points created by Boot.
const (
	DevDir      = "/dev"
	AcpiPath    = "/dev/kernel.acpi"
	FbPath      = "/dev/fb0"
	PipeDir     = "/pipe"
	acpiName    = "kernel.acpi"
	fbName      = "fb0"
	pipeDirName = "pipe"
	devDirName  = "dev"
)

type Options struct {
	// DriverTimeout bounds every user-space driver call. Zero waits forever.
	// A driver that misses it is unregistered.
	DriverTimeout  time.Duration
	ListBufferSize int
	MaxListSize    int
	Clock          clock.Clock
}

type System struct {
	ns   *vfs.Namespace
	reg  *userfs.Registry
	conn *userfs.Conn

	lock     sync.Mutex
	managers map[userfs.ProcessID]*Manager

	pipeLock sync.Mutex
	pipeSeq  map[userfs.ProcessID]int
}

// New creates a system with an empty root directory.
func New(host userfs.Host, opts Options) *System {
	reg := userfs.NewRegistry()
	return &System{
		ns:  vfs.NewNamespace(pseudofs.NewRootFS()),
		reg: reg,
		conn: userfs.NewConn(reg, host, userfs.Options{
			Timeout:        opts.DriverTimeout,
			ListBufferSize: opts.ListBufferSize,
			MaxListSize:    opts.MaxListSize,
			Clock:          opts.Clock,
		}),
		managers: map[userfs.ProcessID]*Manager{},
		pipeSeq:  map[userfs.ProcessID]int{},
	}
}

// Boot populates the tree with the kernel devices: /dev, the ACPI table at
// /dev/kernel.acpi, the framebuffer at /dev/fb0 if fb is not nil, and the
// directory pipes are mounted in.
func (s *System) Boot(acpiTable []byte, fb *pseudofs.FbFS) error {
	root := s.ns.Root()

	dev := pseudofs.NewRootFS()
	if err := vfs.MountTo(dev, root, devDirName); err != nil {
		return err
	}
	if err := vfs.MountTo(pseudofs.NewAcpiFS(acpiTable), dev, acpiName); err != nil {
		return err
	}
	if fb != nil {
		if err := vfs.MountTo(fb, dev, fbName); err != nil {
			return err
		}
	}
	if err := vfs.MountTo(pseudofs.NewRootFS(), root, pipeDirName); err != nil {
		return err
	}

	log.Infof("vfs ready: acpi table %d bytes, framebuffer %v", len(acpiTable), fb != nil)
	return nil
}

func (s *System) Namespace() *vfs.Namespace {
	return s.ns
}

func (s *System) Registry() *userfs.Registry {
	return s.reg
}

func (s *System) manager(pid userfs.ProcessID) (*Manager, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	m, ok := s.managers[pid]
	if !ok {
		return nil, fmt.Errorf("%v: %w", pid, ErrNoProcess)
	}
	return m, nil
}

func (s *System) file(pid userfs.ProcessID, fd int) (*File, error) {
	m, err := s.manager(pid)
	if err != nil {
		return nil, err
	}
	f, ok := m.Get(fd)
	if !ok {
		return nil, fmt.Errorf("%v fd %d: %w", pid, fd, ErrBadDescriptor)
	}
	return f, nil
}

func (s *System) install(pid userfs.ProcessID, m *Manager) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.managers[pid]; ok {
		log.Warnf("%v already has a descriptor table, replacing it", pid)
	}
	s.managers[pid] = m
}

// Admit gives a new process an empty descriptor table rooted at "/".
func (s *System) Admit(pid userfs.ProcessID) {
	s.install(pid, NewManager(s.ns.Root()))
}

// Fork makes child share the descriptor table of parent: descriptors
// opened, closed or moved by either are visible to both.
func (s *System) Fork(parent, child userfs.ProcessID) error {
	m, err := s.manager(parent)
	if err != nil {
		return err
	}
	s.install(child, m)
	return nil
}

// ForkWithStdio gives pid a fresh table whose standard descriptors are
// wired to stdin and stdout. Standard error shares stdout.
func (s *System) ForkWithStdio(pid userfs.ProcessID, stdin, stdout vfs.Inode) {
	m := NewManager(s.ns.Root())
	m.set(Stdin, stdin, Read)
	m.set(Stdout, stdout, ReadWrite)
	m.set(Stderr, stdout, ReadWrite)
	s.install(pid, m)
}

// Exit drops the descriptor table of pid and its driver registration. The
// descriptors are closed unless a forked process still shares the table.
func (s *System) Exit(pid userfs.ProcessID) error {
	s.reg.Unregister(pid)

	s.lock.Lock()
	m, ok := s.managers[pid]
	if !ok {
		s.lock.Unlock()
		return fmt.Errorf("%v: %w", pid, ErrNoProcess)
	}
	delete(s.managers, pid)
	shared := false
	for _, other := range s.managers {
		if other == m {
			shared = true
			break
		}
	}
	s.lock.Unlock()

	if shared {
		return nil
	}

	var result error
	for _, fd := range m.Fds() {
		if err := s.release(m, fd); err != nil {
			result = multierror.Append(result, fmt.Errorf("fd %d: %w", fd, err))
		}
	}
	if result != nil {
		log.Errorf("exit %v: %v", pid, result)
	}
	return result
}

// RegisterDriver records pid as the driver of the filesystem name, with its
// command block at addr.
func (s *System) RegisterDriver(pid userfs.ProcessID, name string, addr uint64) error {
	if _, err := s.manager(pid); err != nil {
		return err
	}
	return s.reg.Register(pid, name, addr)
}

// KernelOpen resolves an absolute or driver path without a descriptor.
func (s *System) KernelOpen(p string) (vfs.Inode, error) {
	if isDriverPath(p) {
		return s.openDriverPath(p)
	}
	return s.ns.Lookup(p)
}

// refs counts descriptors referring to inode across every table.
func (s *System) refs(inode vfs.Inode) int {
	s.lock.Lock()
	seen := map[*Manager]bool{}
	for _, m := range s.managers {
		seen[m] = true
	}
	s.lock.Unlock()

	n := 0
	for m := range seen {
		n += m.Refs(inode)
	}
	return n
}

// release closes fd in m. A pipe whose last descriptor goes away is
// unmounted from the pipe directory.
func (s *System) release(m *Manager, fd int) error {
	f, ok := m.Remove(fd)
	if !ok {
		return ErrBadDescriptor
	}
	if f.Inode.Kind() != vfs.KindPipe || m.Refs(f.Inode) > 0 || s.refs(f.Inode) > 0 {
		return nil
	}

	parent := f.Inode.Parent()
	if parent == nil {
		return nil
	}
	_, name := vfs.SplitLeaf(f.Inode.Path())
	if err := vfs.Umount(parent, name); err != nil && !errors.Is(err, vfs.ErrNotFound) {
		return err
	}
	return nil
}
