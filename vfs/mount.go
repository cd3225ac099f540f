package vfs

import (
	"fmt"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MountTo attaches child under parent with the given name. It is the only
// way nodes enter the namespace.
func MountTo(child, parent Inode, name string) error {
	m, ok := parent.(Mounter)
	if !ok {
		log.Errorf("mount %s: %s is not a mount point", name, parent.Path())
		return ErrNotDir
	}
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("mount %q: %w", name, ErrInvalid)
	}

	for p := parent; p != nil; p = p.Parent() {
		if p == child {
			log.Errorf("mount %s under %s: cycle", name, parent.Path())
			return ErrCycle
		}
	}

	if err := m.Mount(name, child); err != nil {
		log.Debugf("mount %s under %s: %v", name, parent.Path(), err)
		return err
	}
	child.WhenMounted(path.Join(parent.Path(), name), parent)

	log.Debugf("mounted %s", child.Path())
	return nil
}

// Umount detaches the child named name from parent.
func Umount(parent Inode, name string) error {
	m, ok := parent.(Mounter)
	if !ok {
		return ErrNotDir
	}
	child, err := m.Unmount(name)
	if err != nil {
		return err
	}
	child.WhenUmounted()

	log.Debugf("unmounted %s", path.Join(parent.Path(), name))
	return nil
}
