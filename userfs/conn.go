package userfs

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/reduct-os/kvfs/internal/abi"
	"github.com/reduct-os/kvfs/stats"
	log "github.com/sirupsen/logrus"
)

var ErrTimeout = errors.New("driver did not complete the command")

// DefaultListBufferSize is the first guess for the size of an encoded
// directory listing.
const DefaultListBufferSize = 4096

// DefaultMaxListSize bounds the listing size a driver may ask for.
const DefaultMaxListSize = 1 << 20

type Options struct {
	// Timeout bounds the wait for a driver to complete a command. Zero waits
	// forever.
	Timeout time.Duration

	// ListBufferSize is the transient buffer offered to LIST.
	ListBufferSize int

	// MaxListSize is the largest listing a driver may ask the kernel to
	// allocate. It is never below ListBufferSize.
	MaxListSize int

	Clock clock.Clock
}

// Conn carries commands from the kernel to registered drivers.
type Conn struct {
	reg  *Registry
	host Host

	clock   clock.Clock
	timeout time.Duration
	listBuf int
	maxList int
}

func NewConn(reg *Registry, host Host, opts Options) *Conn {
	c := &Conn{
		reg:     reg,
		host:    host,
		clock:   opts.Clock,
		timeout: opts.Timeout,
		listBuf: opts.ListBufferSize,
		maxList: opts.MaxListSize,
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.listBuf <= 0 {
		c.listBuf = DefaultListBufferSize
	}
	if c.maxList <= 0 {
		c.maxList = DefaultMaxListSize
	}
	if c.maxList < c.listBuf {
		c.maxList = c.listBuf
	}
	return c
}

func (c *Conn) Registry() *Registry {
	return c.reg
}

// request describes one command. in is copied into the transient buffer
// before the call; out, if set, receives up to len(out) bytes of it after.
// path names the open file the command concerns and is omitted for OPEN,
// whose payload is the path itself.
type request struct {
	op     abi.Op
	offset uint64
	arg    uint64
	path   string
	in     []byte
	out    []byte
}

// transient is a buffer mapped into the driver for the length of one call.
type transient struct {
	as   AddressSpace
	addr uint64
	size int
}

func alloc(as AddressSpace, size int, fill []byte) (*transient, error) {
	t := &transient{as: as, size: size}
	if size == 0 {
		return t, nil
	}
	addr, err := as.Alloc(size)
	if err != nil {
		return nil, err
	}
	t.addr = addr
	if len(fill) > 0 {
		if _, err := as.WriteAt(fill, addr); err != nil {
			t.free()
			return nil, err
		}
	}
	return t, nil
}

func (t *transient) free() {
	if t.size == 0 {
		return
	}
	if err := t.as.Free(t.addr); err != nil {
		log.Debugf("free transient buffer %#x: %v", t.addr, err)
	}
}

// call runs one command against the driver served by pid and returns the
// driver's result. Calls to the same driver are serialized.
//
// A driver that misses the deadline is retired: it may still complete the
// abandoned command later, and that completion would land on the block of
// the next call.
func (c *Conn) call(pid ProcessID, req *request) (ret int64, err error) {
	d, ok := c.reg.get(pid)
	if !ok {
		return 0, fmt.Errorf("%v: %w", pid, ErrNoDriver)
	}
	as, ok := c.host.AddressSpace(pid)
	if !ok {
		return 0, fmt.Errorf("%v has no address space: %w", pid, ErrNoDriver)
	}

	d.sem <- struct{}{}
	defer func() { <-d.sem }()
	if d.retired.Load() {
		return 0, fmt.Errorf("%v timed out earlier: %w", pid, ErrNoDriver)
	}

	start := c.clock.Now()
	timedOut := false
	defer func() {
		stats.AddDriverCall(d.name, req.op.String(), c.clock.Since(start), err, timedOut)
	}()

	size := len(req.in)
	if req.out != nil {
		size = len(req.out)
	}
	data, err := alloc(as, size, req.in)
	if err != nil {
		log.Errorf("driver %q: alloc %d bytes: %v", d.name, size, err)
		return 0, err
	}
	defer data.free()

	cmd := abi.NewCommand(req.op, req.offset, data.addr, uint64(data.size))
	if req.op == abi.OpIoctl {
		cmd = abi.NewCommand(req.op, req.offset, req.arg, 0)
	}
	if req.op != abi.OpOpen {
		path, err := alloc(as, len(req.path), []byte(req.path))
		if err != nil {
			log.Errorf("driver %q: alloc path: %v", d.name, err)
			return 0, err
		}
		defer path.free()
		cmd.SetPath(path.addr, path.size)
	}

	if _, err = as.WriteAt(abi.Marshal(cmd), d.addr); err != nil {
		log.Errorf("driver %q: write command block at %#x: %v", d.name, d.addr, err)
		return 0, err
	}
	defer c.clear(as, d)

	if err = c.wait(as, d.addr); err != nil {
		log.Errorf("driver %q: %v: %v", d.name, req.op, err)
		if timedOut = errors.Is(err, ErrTimeout); timedOut {
			d.retired.Store(true)
			c.reg.retire(pid, d)
		}
		return 0, err
	}

	blk := make([]byte, abi.CommandSize)
	if _, err = as.ReadAt(blk, d.addr); err != nil {
		return 0, err
	}
	ret = abi.CommandDecoder(blk).Result(2)

	if req.out != nil && data.size > 0 {
		if _, err = as.ReadAt(req.out, data.addr); err != nil {
			return 0, err
		}
	}
	return ret, nil
}

// wait polls the completion word, yielding between checks.
func (c *Conn) wait(as AddressSpace, addr uint64) error {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = c.clock.Now().Add(c.timeout)
	}

	word := make([]byte, abi.WordSize)
	for {
		if _, err := as.ReadAt(word, addr+abi.CommandDoneOffset); err != nil {
			return err
		}
		if abi.DecodeWord(word) != 0 {
			return nil
		}
		if c.timeout > 0 && !c.clock.Now().Before(deadline) {
			return fmt.Errorf("after %v: %w", c.timeout, ErrTimeout)
		}
		c.host.Yield()
	}
}

// clear returns the command block to idle.
func (c *Conn) clear(as AddressSpace, d *driver) {
	if _, err := as.WriteAt(make([]byte, abi.CommandSize), d.addr); err != nil {
		log.Debugf("driver %q: clear command block: %v", d.name, err)
	}
}
