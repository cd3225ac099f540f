// Package simhost runs the filesystem without a real scheduler: every
// process is a goroutine and every address space is a set of byte regions.
package simhost

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/reduct-os/kvfs/internal/abi"
	"github.com/reduct-os/kvfs/userfs"
)

var ErrFault = errors.New("address not mapped")

// PageSize is the alignment of every region handed out by Alloc.
const PageSize = 4096

// base is the first address handed out in every address space.
const base = 0x10000

type region struct {
	addr uint64
	data []byte
}

// Memory is a sparse address space. Regions never overlap and are not
// reused after Free.
type Memory struct {
	mu      sync.Mutex
	regions map[uint64]*region
	next    uint64
}

func NewMemory() *Memory {
	return &Memory{regions: map[uint64]*region{}, next: base}
}

func (m *Memory) Alloc(size int) (uint64, error) {
	if size <= 0 {
		return 0, fmt.Errorf("alloc %d bytes: bad size", size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &region{addr: m.next, data: make([]byte, size)}
	m.regions[r.addr] = r
	m.next += uint64(abi.Roundup(size, PageSize))
	return r.addr, nil
}

func (m *Memory) Free(addr uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.regions[addr]; !ok {
		return fmt.Errorf("free %#x: %w", addr, ErrFault)
	}
	delete(m.regions, addr)
	return nil
}

// find returns the region holding [addr, addr+n). Must hold m.mu.
func (m *Memory) find(addr uint64, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	for _, r := range m.regions {
		if addr >= r.addr && addr+uint64(n) <= r.addr+uint64(len(r.data)) {
			return r.data[addr-r.addr : addr-r.addr+uint64(n)], nil
		}
	}
	return nil, fmt.Errorf("%#x+%d: %w", addr, n, ErrFault)
}

func (m *Memory) ReadAt(p []byte, addr uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.find(addr, len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, b), nil
}

func (m *Memory) WriteAt(p []byte, addr uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.find(addr, len(p))
	if err != nil {
		return 0, err
	}
	return copy(b, p), nil
}

// Host keeps the address spaces of the simulated processes.
type Host struct {
	mu    sync.Mutex
	procs map[userfs.ProcessID]*Memory
	next  userfs.ProcessID

	// OnYield, if set, runs on every Yield before the goroutine yields.
	OnYield func()
}

func NewHost() *Host {
	return &Host{procs: map[userfs.ProcessID]*Memory{}, next: 1}
}

// Spawn creates a process with an empty address space.
func (h *Host) Spawn() (userfs.ProcessID, *Memory) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pid := h.next
	h.next++
	m := NewMemory()
	h.procs[pid] = m
	return pid, m
}

// Kill drops the address space of pid.
func (h *Host) Kill(pid userfs.ProcessID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.procs, pid)
}

func (h *Host) AddressSpace(pid userfs.ProcessID) (userfs.AddressSpace, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.procs[pid]
	if !ok {
		return nil, false
	}
	return m, true
}

func (h *Host) Yield() {
	if h.OnYield != nil {
		h.OnYield()
	}
	runtime.Gosched()
}
