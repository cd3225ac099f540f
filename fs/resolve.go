package fs

import (
	"fmt"
	"strings"

	"github.com/reduct-os/kvfs/userfs"
	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
)

// Driver paths have the form ":name:rest" and resolve rest against the
// driver registered under name.
func isDriverPath(p string) bool {
	return strings.HasPrefix(p, ":")
}

func splitDriverPath(p string) (name, rest string, err error) {
	name, rest, ok := strings.Cut(strings.TrimPrefix(p, ":"), ":")
	if !ok || name == "" {
		return "", "", fmt.Errorf("driver path %q: %w", p, vfs.ErrInvalid)
	}
	return name, rest, nil
}

// openDriverPath builds a proxy inode for the driver path p. The proxy is
// not attached to the tree; it only knows its path on the driver side.
func (s *System) openDriverPath(p string) (vfs.Inode, error) {
	name, rest, err := splitDriverPath(p)
	if err != nil {
		return nil, err
	}
	pid, ok := s.reg.Lookup(name)
	if !ok {
		log.Debugf("open %s: no driver %q", p, name)
		return nil, fmt.Errorf("%s: %w", p, vfs.ErrNotFound)
	}

	inode := userfs.New(s.conn, pid, name)
	inode.WhenMounted(rest, nil)
	if err := inode.Lookup(); err != nil {
		log.Debugf("open %s: %v", p, err)
		return nil, fmt.Errorf("%s: %w", p, vfs.ErrNotFound)
	}
	return inode, nil
}

// resolve finds the inode p names for a process: driver paths through the
// registry, absolute paths from the root and anything else from the
// process's working directory.
func (s *System) resolve(m *Manager, p string) (vfs.Inode, error) {
	switch {
	case isDriverPath(p):
		return s.openDriverPath(p)
	case strings.HasPrefix(p, "/"):
		return s.ns.Lookup(p)
	}
	return vfs.Walk(m.Cwd(), p)
}

// resolveParent finds the directory that would hold the last segment of p.
func (s *System) resolveParent(m *Manager, p string) (vfs.Inode, string, error) {
	if isDriverPath(p) {
		return nil, "", fmt.Errorf("create %s: %w", p, vfs.ErrNotSupported)
	}
	dir, leaf := vfs.SplitLeaf(p)
	if leaf == "" {
		return nil, "", fmt.Errorf("create %q: %w", p, vfs.ErrInvalid)
	}
	if dir == "" {
		return m.Cwd(), leaf, nil
	}
	parent, err := s.resolve(m, dir)
	if err != nil {
		return nil, "", err
	}
	return parent, leaf, nil
}
