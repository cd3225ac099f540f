package userfs

import (
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var ErrNoDriver = errors.New("no driver registered")

type driver struct {
	addr uint64
	name string

	// sem admits one call at a time to the single command block.
	sem chan struct{}

	// retired is set once a call times out. No command is written to the
	// block afterwards.
	retired atomic.Bool
}

// Registry maps driver processes to their shared command blocks and
// filesystem names to the processes serving them. The lock covers a single
// lookup or mutation and is never held while a call is in flight.
type Registry struct {
	mu     sync.Mutex
	byPid  map[ProcessID]*driver
	byName map[string]ProcessID
}

func NewRegistry() *Registry {
	return &Registry{
		byPid:  map[ProcessID]*driver{},
		byName: map[string]ProcessID{},
	}
}

// Register associates pid with a filesystem name and the address of its
// command block. Registering again replaces the earlier entry.
func (r *Registry) Register(pid ProcessID, name string, addr uint64) error {
	if name == "" {
		return errors.New("empty filesystem name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byName[name]; ok && old != pid {
		log.Infof("driver %q moves from %v to %v", name, old, pid)
		delete(r.byPid, old)
	}
	if d, ok := r.byPid[pid]; ok && d.name != name {
		delete(r.byName, d.name)
	}
	r.byPid[pid] = &driver{addr: addr, name: name, sem: make(chan struct{}, 1)}
	r.byName[name] = pid

	log.Debugf("registered driver %q: %v, command block %#x", name, pid, addr)
	return nil
}

// Unregister forgets the driver served by pid, if any.
func (r *Registry) Unregister(pid ProcessID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byPid[pid]
	if !ok {
		return
	}
	delete(r.byPid, pid)
	if r.byName[d.name] == pid {
		delete(r.byName, d.name)
	}
	log.Debugf("unregistered driver %q (%v)", d.name, pid)
}

// retire drops d if it is still the driver registered by pid.
func (r *Registry) retire(pid ProcessID, d *driver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byPid[pid] != d {
		return
	}
	delete(r.byPid, pid)
	if r.byName[d.name] == pid {
		delete(r.byName, d.name)
	}
	log.Infof("driver %q (%v) retired after a timeout", d.name, pid)
}

// Lookup finds the process serving a filesystem name.
func (r *Registry) Lookup(name string) (ProcessID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid, ok := r.byName[name]
	return pid, ok
}

// Addr returns the command block address registered by pid.
func (r *Registry) Addr(pid ProcessID) (uint64, bool) {
	d, ok := r.get(pid)
	if !ok {
		return 0, false
	}
	return d.addr, true
}

func (r *Registry) get(pid ProcessID) (*driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byPid[pid]
	return d, ok
}
