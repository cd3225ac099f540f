package fs

import (
	"fmt"

	"github.com/reduct-os/kvfs/internal/abi"
	"github.com/reduct-os/kvfs/pseudofs"
	"github.com/reduct-os/kvfs/stats"
	"github.com/reduct-os/kvfs/userfs"
	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

func (s *System) Open(pid userfs.ProcessID, p string, mode OpenMode) (fd int, err error) {
	defer func() { stats.AddSyscall("open", err) }()

	m, err := s.manager(pid)
	if err != nil {
		return -1, err
	}
	inode, err := s.resolve(m, p)
	if err != nil {
		log.Debugf("open %s: %v", p, err)
		return -1, err
	}
	stats.AddOpen(inode.Path())
	return m.Add(inode, mode), nil
}

// Create makes a file or directory at p and opens it.
func (s *System) Create(pid userfs.ProcessID, p string, typ vfs.InodeType, mode OpenMode) (fd int, err error) {
	defer func() { stats.AddSyscall("create", err) }()

	m, err := s.manager(pid)
	if err != nil {
		return -1, err
	}
	parent, leaf, err := s.resolveParent(m, p)
	if err != nil {
		return -1, err
	}
	inode, err := parent.Create(leaf, typ)
	if err != nil {
		log.Debugf("create %s: %v", p, err)
		return -1, err
	}
	stats.AddCreate(inode.Path())
	return m.Add(inode, mode), nil
}

// Read fills buf from the descriptor's cursor. The cursor does not move.
func (s *System) Read(pid userfs.ProcessID, fd int, buf []byte) (n int, err error) {
	defer func() { stats.AddSyscall("read", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return 0, err
	}
	n, err = f.Inode.ReadAt(f.Offset(), buf)
	if err != nil {
		log.Debugf("read fd %d (%s): %v", fd, f.Inode.Path(), err)
		return 0, err
	}
	stats.AddReadBytes(f.Inode.Path(), uint64(n))
	return n, nil
}

// Write stores buf at the descriptor's cursor. The cursor does not move.
func (s *System) Write(pid userfs.ProcessID, fd int, buf []byte) (n int, err error) {
	defer func() { stats.AddSyscall("write", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return 0, err
	}
	if !f.Mode.CanWrite() {
		return 0, fmt.Errorf("write fd %d opened %v: %w", fd, f.Mode, vfs.ErrPermission)
	}
	n, err = f.Inode.WriteAt(f.Offset(), buf)
	if err != nil {
		log.Debugf("write fd %d (%s): %v", fd, f.Inode.Path(), err)
		return 0, err
	}
	stats.AddWriteBytes(f.Inode.Path(), uint64(n))
	return n, nil
}

// Lseek moves the cursor to an absolute offset.
func (s *System) Lseek(pid userfs.ProcessID, fd int, offset int64) (err error) {
	defer func() { stats.AddSyscall("lseek", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("lseek fd %d to %d: %w", fd, offset, vfs.ErrInvalid)
	}
	f.SetOffset(offset)
	return nil
}

func (s *System) Close(pid userfs.ProcessID, fd int) (err error) {
	defer func() { stats.AddSyscall("close", err) }()

	m, err := s.manager(pid)
	if err != nil {
		return err
	}
	if f, ok := m.Get(fd); ok {
		stats.AddClose(f.Inode.Path())
	}
	if err := s.release(m, fd); err != nil {
		return fmt.Errorf("%v fd %d: %w", pid, fd, err)
	}
	return nil
}

func (s *System) Stat(pid userfs.ProcessID, fd int) (_ *abi.Stat, err error) {
	defer func() { stats.AddSyscall("stat", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return nil, err
	}
	a, err := vfs.GetAttributes(f.Inode)
	if err != nil {
		return nil, err
	}
	return abi.StatFromVfs(a), nil
}

func (s *System) StatFS(pid userfs.ProcessID, fd int) (_ *abi.StatFS, err error) {
	defer func() { stats.AddSyscall("statfs", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return nil, err
	}
	a, err := vfs.GetFSAttributes(f.Inode, abi.BlockSize)
	if err != nil {
		return nil, err
	}
	return abi.StatFSFromVfs(a), nil
}

func (s *System) Size(pid userfs.ProcessID, fd int) (_ int64, err error) {
	defer func() { stats.AddSyscall("fsize", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return 0, err
	}
	return f.Inode.Size()
}

func (s *System) TypeOf(pid userfs.ProcessID, fd int) (_ vfs.InodeType, err error) {
	defer func() { stats.AddSyscall("type", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return vfs.File, err
	}
	return f.Inode.Type(), nil
}

// ListDir returns the entries of a directory sorted by name. Anything that
// is not a directory lists as empty.
func (s *System) ListDir(pid userfs.ProcessID, fd int) (_ []vfs.FileInfo, err error) {
	defer func() { stats.AddSyscall("listdir", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return nil, err
	}
	if f.Inode.Type() != vfs.Dir {
		return []vfs.FileInfo{}, nil
	}
	list, err := f.Inode.List()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(list, func(a, b vfs.FileInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return list, nil
}

// ChangeCwd moves the working directory of pid. The target must be a
// directory.
func (s *System) ChangeCwd(pid userfs.ProcessID, p string) (err error) {
	defer func() { stats.AddSyscall("chdir", err) }()

	m, err := s.manager(pid)
	if err != nil {
		return err
	}
	dir, err := s.resolve(m, p)
	if err != nil {
		return err
	}
	if dir.Type() != vfs.Dir {
		return fmt.Errorf("chdir %s: %w", p, vfs.ErrNotDir)
	}
	m.SetCwd(dir)
	return nil
}

// GetCwd reports the working directory of pid. A directory served by a
// driver is reported as a driver path.
func (s *System) GetCwd(pid userfs.ProcessID) (_ string, err error) {
	defer func() { stats.AddSyscall("getcwd", err) }()

	m, err := s.manager(pid)
	if err != nil {
		return "", err
	}
	if u, ok := m.Cwd().(*userfs.UserFS); ok {
		return u.DriverPath(), nil
	}
	return m.Cwd().Path(), nil
}

func (s *System) Ioctl(pid userfs.ProcessID, fd int, cmd, arg uint64) (v uint64, err error) {
	defer func() { stats.AddSyscall("ioctl", err) }()

	f, err := s.file(pid, fd)
	if err != nil {
		return 0, err
	}
	stats.AddIoctl(f.Inode.Path())
	return f.Inode.Ioctl(cmd, arg)
}

// Pipe creates an anonymous pipe, mounts it under the pipe directory and
// returns a read and a write descriptor for it.
func (s *System) Pipe(pid userfs.ProcessID) (r, w int, err error) {
	defer func() { stats.AddSyscall("pipe", err) }()

	m, err := s.manager(pid)
	if err != nil {
		return -1, -1, err
	}
	dir, err := s.ns.Lookup(PipeDir)
	if err != nil {
		log.Errorf("pipe: %s is not mounted", PipeDir)
		return -1, -1, err
	}

	s.pipeLock.Lock()
	seq := s.pipeSeq[pid]
	s.pipeSeq[pid] = seq + 1
	s.pipeLock.Unlock()

	pipe := pseudofs.NewPipeFS()
	if err := vfs.MountTo(pipe, dir, fmt.Sprintf("pipe%d-%d", uint64(pid), seq)); err != nil {
		return -1, -1, err
	}
	stats.AddPipe()

	return m.Add(pipe, Read), m.Add(pipe, Write), nil
}
