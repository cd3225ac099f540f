// Package pseudofs holds the kernel resident inodes: plain directories used
// as mount points, in-memory files, the ACPI table blob, the framebuffer
// device and anonymous pipes.
package pseudofs

import (
	"sync"

	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// RootFS is a generic directory. It serves as the global root and as any
// mount point below it; names resolve through its own child table.
type RootFS struct {
	vfs.Base

	mu       sync.Mutex
	children map[string]vfs.Inode
}

var _ vfs.Mounter = (*RootFS)(nil)

func NewRootFS() *RootFS {
	fs := &RootFS{children: map[string]vfs.Inode{}}
	fs.InitBase()
	return fs
}

func (fs *RootFS) Kind() vfs.Kind {
	return vfs.KindRoot
}

func (fs *RootFS) Type() vfs.InodeType {
	return vfs.Dir
}

func (fs *RootFS) Mount(name string, child vfs.Inode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.children[name]; ok {
		return vfs.ErrExist
	}
	fs.children[name] = child
	fs.Touch()
	return nil
}

func (fs *RootFS) Unmount(name string) (vfs.Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	child, ok := fs.children[name]
	if !ok {
		return nil, vfs.ErrNotFound
	}
	delete(fs.children, name)
	fs.Touch()
	return child, nil
}

func (fs *RootFS) Open(name string) (vfs.Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	child, ok := fs.children[name]
	if !ok {
		return nil, vfs.ErrNotFound
	}
	return child, nil
}

// Create makes a directory or an in-memory file and mounts it here.
func (fs *RootFS) Create(name string, typ vfs.InodeType) (vfs.Inode, error) {
	var child vfs.Inode
	if typ == vfs.Dir {
		child = NewRootFS()
	} else {
		child = NewMemFile()
	}

	if err := vfs.MountTo(child, fs, name); err != nil {
		log.Debugf("create %s in %s: %v", name, fs.Path(), err)
		return nil, err
	}
	return child, nil
}

func (fs *RootFS) List() ([]vfs.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	names := maps.Keys(fs.children)
	slices.Sort(names)

	infos := make([]vfs.FileInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, vfs.FileInfo{Name: name, Type: fs.children[name].Type()})
	}
	return infos, nil
}

// Size is the number of entries.
func (fs *RootFS) Size() (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return int64(len(fs.children)), nil
}
