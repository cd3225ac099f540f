// Package userfs lets a user-space process act as a filesystem driver. The
// kernel side is an inode, UserFS, that turns every capability call into a
// command block written to memory shared with the driver; the driver side is
// Serve, which polls that block and answers through a Handler.
package userfs

import "fmt"

// ProcessID identifies a live process.
type ProcessID uint64

func (p ProcessID) String() string {
	return fmt.Sprintf("pid %d", uint64(p))
}

// AddressSpace is the part of a process's memory the kernel can reach.
type AddressSpace interface {
	// ReadAt copies len(p) bytes starting at addr out of the process.
	ReadAt(p []byte, addr uint64) (int, error)
	// WriteAt copies p into the process starting at addr.
	WriteAt(p []byte, addr uint64) (int, error)
	// Alloc maps a zeroed buffer of size bytes and returns its address.
	Alloc(size int) (uint64, error)
	// Free releases a buffer returned by Alloc.
	Free(addr uint64) error
}

// Host is what the scheduler offers the filesystem.
type Host interface {
	// AddressSpace looks up a live process.
	AddressSpace(pid ProcessID) (AddressSpace, bool)
	// Yield gives the processor back to the scheduler.
	Yield()
}
