package abi

import "fmt"

// Op is the operation code carried in a command block.
type Op uint64

const (
	OpNone  Op = 0
	OpRead  Op = 1
	OpWrite Op = 2
	OpOpen  Op = 3
	OpSize  Op = 4
	OpList  Op = 5
	OpIoctl Op = 6
)

func (op Op) String() string {
	switch op {
	case OpNone:
		return "NONE"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpOpen:
		return "OPEN"
	case OpSize:
		return "SIZE"
	case OpList:
		return "LIST"
	case OpIoctl:
		return "IOCTL"
	}
	return fmt.Sprintf("Op(%d)", uint64(op))
}

// Valid reports whether op belongs to the closed set a driver must answer.
func (op Op) Valid() bool {
	return op >= OpRead && op <= OpIoctl
}

// Command block layout: eight little endian words.
const (
	CommandOpOffset     = 0
	CommandOffsetOffset = 8
	CommandAddrOffset   = 16
	CommandLenOffset    = 24
	CommandDoneOffset   = 32
	CommandResultOffset = 40

	CommandResults = 3
	CommandSize    = CommandResultOffset + CommandResults*WordSize
)

// Command is one driver proxy request. Result[0] and Result[1] carry the
// address and length of the open file's path on the way in; Result[2] holds
// the driver's return value on the way out.
type Command struct {
	Op     Op
	Offset uint64
	Addr   uint64
	Len    uint64
	Done   uint64
	Result [CommandResults]int64
}

func NewCommand(op Op, offset, addr, length uint64) *Command {
	return &Command{
		Op:     op,
		Offset: offset,
		Addr:   addr,
		Len:    length,
	}
}

// SetPath stamps the location of the open file's path.
func (c *Command) SetPath(addr uint64, length int) {
	c.Result[0] = int64(addr)
	c.Result[1] = int64(length)
}

// Path returns the location stamped by SetPath.
func (c *Command) Path() (uint64, int) {
	return uint64(c.Result[0]), int(c.Result[1])
}

// Return is the value the driver stored when completing the call.
func (c *Command) Return() int64 {
	return c.Result[2]
}

func (c *Command) SetReturn(v int64) {
	c.Result[2] = v
}

func (c *Command) Size() int {
	return CommandSize
}

func (c *Command) Encode(pkt []byte) {
	le.PutUint64(pkt[CommandOpOffset:], uint64(c.Op))
	le.PutUint64(pkt[CommandOffsetOffset:], c.Offset)
	le.PutUint64(pkt[CommandAddrOffset:], c.Addr)
	le.PutUint64(pkt[CommandLenOffset:], c.Len)
	le.PutUint64(pkt[CommandDoneOffset:], c.Done)
	for i, r := range c.Result {
		le.PutUint64(pkt[CommandResultOffset+i*WordSize:], uint64(r))
	}
}

// CommandDecoder reads a command block in place.
type CommandDecoder []byte

func (r CommandDecoder) IsInvalid() bool {
	return len(r) < CommandSize
}

func (r CommandDecoder) Op() Op {
	return Op(le.Uint64(r[CommandOpOffset:]))
}

func (r CommandDecoder) Offset() uint64 {
	return le.Uint64(r[CommandOffsetOffset:])
}

func (r CommandDecoder) Addr() uint64 {
	return le.Uint64(r[CommandAddrOffset:])
}

func (r CommandDecoder) Len() uint64 {
	return le.Uint64(r[CommandLenOffset:])
}

func (r CommandDecoder) Done() uint64 {
	return le.Uint64(r[CommandDoneOffset:])
}

func (r CommandDecoder) Result(i int) int64 {
	return int64(le.Uint64(r[CommandResultOffset+i*WordSize:]))
}

func (r CommandDecoder) Command() *Command {
	c := &Command{
		Op:     r.Op(),
		Offset: r.Offset(),
		Addr:   r.Addr(),
		Len:    r.Len(),
		Done:   r.Done(),
	}
	for i := range c.Result {
		c.Result[i] = r.Result(i)
	}
	return c
}

// DoneWord encodes a completion flag for writing at CommandDoneOffset.
func DoneWord(v uint64) []byte {
	b := make([]byte, WordSize)
	le.PutUint64(b, v)
	return b
}

// DecodeWord reads a single little endian word.
func DecodeWord(b []byte) uint64 {
	return le.Uint64(b)
}
