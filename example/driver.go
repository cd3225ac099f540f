package example

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/xattr"
	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Ioctl commands understood by PassthroughDriver.
const (
	IoctlXattrCount = 1
	IoctlFreeBlocks = 2
)

// PassthroughDriver serves a host directory as a user-space filesystem.
// Open files are kept open for the life of the driver; directory listings
// are cached until the watcher reports a change.
type PassthroughDriver struct {
	rootPath  string
	openFiles sync.Map
	listings  sync.Map
	watcher   *fsnotify.Watcher
}

func NewPassthroughDriver(rootPath string) (*PassthroughDriver, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, vfs.ErrNotDir
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Errorf("failed creating a new watcher: %v", err)
		return nil, err
	}
	return &PassthroughDriver{
		rootPath: rootPath,
		watcher:  watcher,
	}, nil
}

func (d *PassthroughDriver) hostPath(p string) string {
	return filepath.Join(d.rootPath, filepath.FromSlash(path.Clean("/"+p)))
}

func (d *PassthroughDriver) Open(p string) (vfs.InodeType, error) {
	hp := d.hostPath(p)
	info, err := os.Stat(hp)
	if err != nil {
		log.Debugf("open %s: %v", hp, err)
		return vfs.File, vfs.ErrNotFound
	}
	if info.IsDir() {
		return vfs.Dir, nil
	}
	if _, err := d.file(hp); err != nil {
		return vfs.File, err
	}
	log.Debugf("open %s success", hp)
	return vfs.File, nil
}

// file returns the cached handle of a host file, opening it read-write if
// permitted and read-only otherwise.
func (d *PassthroughDriver) file(hp string) (*os.File, error) {
	if v, ok := d.openFiles.Load(hp); ok {
		return v.(*os.File), nil
	}
	f, err := os.OpenFile(hp, os.O_RDWR, 0)
	if err != nil {
		f, err = os.Open(hp)
	}
	if err != nil {
		log.Errorf("open %s: %v", hp, err)
		return nil, err
	}
	if v, loaded := d.openFiles.LoadOrStore(hp, f); loaded {
		f.Close()
		return v.(*os.File), nil
	}
	return f, nil
}

func (d *PassthroughDriver) Read(p string, offset int64, buf []byte) (int, error) {
	f, err := d.file(d.hostPath(p))
	if err != nil {
		return 0, err
	}
	n, err := f.ReadAt(buf, offset)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

func (d *PassthroughDriver) Write(p string, offset int64, buf []byte) (int, error) {
	f, err := d.file(d.hostPath(p))
	if err != nil {
		return 0, err
	}
	return f.WriteAt(buf, offset)
}

func (d *PassthroughDriver) Size(p string) (int64, error) {
	info, err := os.Stat(d.hostPath(p))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (d *PassthroughDriver) List(p string) ([]vfs.FileInfo, error) {
	hp := d.hostPath(p)
	if v, ok := d.listings.Load(hp); ok {
		return v.([]vfs.FileInfo), nil
	}

	entries, err := os.ReadDir(hp)
	if err != nil {
		log.Errorf("ReadDir %s: %v", hp, err)
		return nil, err
	}
	infos := make([]vfs.FileInfo, 0, len(entries))
	for _, e := range entries {
		typ := vfs.File
		if e.IsDir() {
			typ = vfs.Dir
		}
		infos = append(infos, vfs.FileInfo{Name: e.Name(), Type: typ})
	}

	if err := d.watcher.Add(hp); err != nil {
		log.Debugf("watch %s: %v", hp, err)
	} else {
		d.listings.Store(hp, infos)
	}
	return infos, nil
}

func (d *PassthroughDriver) Ioctl(p string, cmd, arg uint64) (uint64, error) {
	hp := d.hostPath(p)
	switch cmd {
	case IoctlXattrCount:
		names, err := xattr.List(hp)
		if err != nil {
			return 0, err
		}
		return uint64(len(names)), nil
	case IoctlFreeBlocks:
		var statfs unix.Statfs_t
		if err := unix.Statfs(hp, &statfs); err != nil {
			log.Errorf("statfs %s: %v", hp, err)
			return 0, err
		}
		return uint64(statfs.Bavail), nil
	}
	return 0, vfs.ErrNotSupported
}

// Watch drops cached listings of directories that change, until ctx is
// done.
func (d *PassthroughDriver) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			dir := filepath.Dir(event.Name)
			log.Debugf("watcher event: %+v", event)
			d.listings.Delete(dir)
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if v, ok := d.openFiles.LoadAndDelete(event.Name); ok {
					v.(*os.File).Close()
				}
				d.listings.Delete(event.Name)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher error: %v", err)
		}
	}
}

func (d *PassthroughDriver) Close() error {
	d.openFiles.Range(func(k, v interface{}) bool {
		v.(*os.File).Close()
		d.openFiles.Delete(k)
		return true
	})
	return d.watcher.Close()
}
