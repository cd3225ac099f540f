package vfs

import (
	"strings"
	"sync"
)

// Namespace is the global mount tree, reachable from a single root.
type Namespace struct {
	mu   sync.Mutex
	root Inode
}

func NewNamespace(root Inode) *Namespace {
	root.WhenMounted("/", nil)
	return &Namespace{root: root}
}

func (n *Namespace) Root() Inode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.root
}

// Lookup resolves an absolute path from the root.
func (n *Namespace) Lookup(p string) (Inode, error) {
	return Walk(n.Root(), p)
}

// Split breaks a path into its non-empty segments.
func Split(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// SplitLeaf separates the last segment of p from the directory holding it.
// Trailing slashes are ignored. The leaf is empty when p names no segment.
func SplitLeaf(p string) (dir, leaf string) {
	p = strings.TrimRight(p, "/")
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i+1], p[i+1:]
}

// Walk descends from start through each segment of p by calling Open on the
// current node. "." and ".." are ordinary names.
func Walk(start Inode, p string) (Inode, error) {
	node := start
	for _, seg := range Split(p) {
		child, err := node.Open(seg)
		if err != nil {
			return nil, ErrNotFound
		}
		node = child
	}
	return node, nil
}
