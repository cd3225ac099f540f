package userfs

import (
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/reduct-os/kvfs/internal/abi"
	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
)

var ErrFailed = errors.New("driver reported failure")

// Results of OPEN.
const (
	OpenFile = 0
	OpenDir  = 1
)

func failed(op abi.Op, ret int64) error {
	return fmt.Errorf("%v returned %d: %w", op, ret, ErrFailed)
}

// Open asks the driver whether p exists and what it is.
func (c *Conn) Open(pid ProcessID, p string) (vfs.InodeType, error) {
	ret, err := c.call(pid, &request{op: abi.OpOpen, in: []byte(p)})
	if err != nil {
		return vfs.File, err
	}
	switch {
	case ret < 0:
		return vfs.File, fmt.Errorf("%s: %w", p, vfs.ErrNotFound)
	case ret == OpenDir:
		return vfs.Dir, nil
	}
	return vfs.File, nil
}

func (c *Conn) Read(pid ProcessID, p string, offset int64, buf []byte) (int, error) {
	ret, err := c.call(pid, &request{op: abi.OpRead, offset: uint64(offset), path: p, out: buf})
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, failed(abi.OpRead, ret)
	}
	if ret > int64(len(buf)) {
		ret = int64(len(buf))
	}
	return int(ret), nil
}

func (c *Conn) Write(pid ProcessID, p string, offset int64, buf []byte) (int, error) {
	ret, err := c.call(pid, &request{op: abi.OpWrite, offset: uint64(offset), path: p, in: buf})
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, failed(abi.OpWrite, ret)
	}
	return int(ret), nil
}

func (c *Conn) Size(pid ProcessID, p string) (int64, error) {
	ret, err := c.call(pid, &request{op: abi.OpSize, path: p})
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, failed(abi.OpSize, ret)
	}
	return ret, nil
}

func (c *Conn) Ioctl(pid ProcessID, p string, cmd, arg uint64) (uint64, error) {
	ret, err := c.call(pid, &request{op: abi.OpIoctl, offset: cmd, arg: arg, path: p})
	if err != nil {
		return 0, err
	}
	return uint64(ret), nil
}

// List fetches the encoded listing of p. A driver whose listing does not fit
// the offered buffer returns the size it needs, and the call is repeated
// once with a buffer of that size.
func (c *Conn) List(pid ProcessID, p string) ([]vfs.FileInfo, error) {
	buf := make([]byte, c.listBuf)
	for try := 0; try < 2; try++ {
		ret, err := c.call(pid, &request{op: abi.OpList, path: p, out: buf})
		if err != nil {
			return nil, err
		}
		if ret < 0 {
			return nil, failed(abi.OpList, ret)
		}
		if ret <= int64(len(buf)) {
			return abi.NameListDecoder(buf[:ret]).Entries()
		}
		if ret > int64(c.maxList) {
			log.Errorf("list %s: driver asks for %d bytes, limit %d", p, ret, c.maxList)
			return nil, fmt.Errorf("list %s: %d bytes: %w", p, ret, ErrFailed)
		}
		log.Debugf("list %s: need %d bytes, offered %d", p, ret, len(buf))
		buf = make([]byte, ret)
	}
	return nil, fmt.Errorf("list %s: listing keeps growing: %w", p, ErrFailed)
}

// UserFS is the kernel's view of one path served by a driver process. It
// holds nothing but the driver's pid and the path; every capability is a
// command block round trip.
type UserFS struct {
	vfs.Base

	conn *Conn
	pid  ProcessID
	name string

	mu  sync.Mutex
	typ vfs.InodeType
}

// New returns an inode on the driver registered as name by pid.
func New(conn *Conn, pid ProcessID, name string) *UserFS {
	fs := &UserFS{conn: conn, pid: pid, name: name}
	fs.InitBase()
	return fs
}

func (fs *UserFS) Pid() ProcessID {
	return fs.pid
}

// DriverPath is the path as a process names it, ":name:path".
func (fs *UserFS) DriverPath() string {
	return ":" + fs.name + ":" + fs.Path()
}

func (fs *UserFS) Kind() vfs.Kind {
	return vfs.KindUser
}

func (fs *UserFS) Type() vfs.InodeType {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.typ
}

// Lookup sends OPEN for the inode's path and records whether the driver
// reports a file or a directory.
func (fs *UserFS) Lookup() error {
	typ, err := fs.conn.Open(fs.pid, fs.Path())
	if err != nil {
		return err
	}
	fs.mu.Lock()
	fs.typ = typ
	fs.mu.Unlock()
	return nil
}

func (fs *UserFS) ReadAt(offset int64, buf []byte) (int, error) {
	return fs.conn.Read(fs.pid, fs.Path(), offset, buf)
}

func (fs *UserFS) WriteAt(offset int64, buf []byte) (int, error) {
	return fs.conn.Write(fs.pid, fs.Path(), offset, buf)
}

func (fs *UserFS) Size() (int64, error) {
	return fs.conn.Size(fs.pid, fs.Path())
}

func (fs *UserFS) Ioctl(cmd, arg uint64) (uint64, error) {
	return fs.conn.Ioctl(fs.pid, fs.Path(), cmd, arg)
}

func (fs *UserFS) List() ([]vfs.FileInfo, error) {
	if fs.Type() != vfs.Dir {
		return nil, vfs.ErrNotDir
	}
	return fs.conn.List(fs.pid, fs.Path())
}

// Open looks name up below this directory on the driver side.
func (fs *UserFS) Open(name string) (vfs.Inode, error) {
	if fs.Type() != vfs.Dir {
		return nil, vfs.ErrNotDir
	}
	child := New(fs.conn, fs.pid, fs.name)
	child.WhenMounted(path.Join(fs.Path(), name), fs)
	if err := child.Lookup(); err != nil {
		return nil, err
	}
	return child, nil
}

func (fs *UserFS) Create(name string, typ vfs.InodeType) (vfs.Inode, error) {
	return nil, vfs.ErrNotSupported
}
