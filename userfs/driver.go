package userfs

import (
	"context"

	"github.com/reduct-os/kvfs/internal/abi"
	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
)

// Handler is implemented by a driver process to answer commands. Paths are
// the ones the kernel resolved through the driver's namespace.
type Handler interface {
	Open(path string) (vfs.InodeType, error)
	Read(path string, offset int64, buf []byte) (int, error)
	Write(path string, offset int64, buf []byte) (int, error)
	Size(path string) (int64, error)
	List(path string) ([]vfs.FileInfo, error)
	Ioctl(path string, cmd, arg uint64) (uint64, error)
}

// Serve is the driver side of the protocol. It polls the command block at
// addr in the driver's own address space, hands each new command to h and
// completes it, until ctx is cancelled.
func Serve(ctx context.Context, as AddressSpace, addr uint64, h Handler, yield func()) error {
	blk := make([]byte, abi.CommandSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := as.ReadAt(blk, addr); err != nil {
			log.Errorf("serve: read command block at %#x: %v", addr, err)
			return err
		}
		dec := abi.CommandDecoder(blk)
		if dec.Op() == abi.OpNone || dec.Done() != 0 {
			yield()
			continue
		}

		cmd := dec.Command()
		cmd.SetReturn(dispatch(as, cmd, h))
		cmd.Done = 1
		if _, err := as.WriteAt(abi.Marshal(cmd), addr); err != nil {
			log.Errorf("serve: complete %v: %v", cmd.Op, err)
			return err
		}
	}
}

func readString(as AddressSpace, addr uint64, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := as.ReadAt(b, addr); err != nil {
		return "", err
	}
	return string(b), nil
}

func dispatch(as AddressSpace, cmd *abi.Command, h Handler) int64 {
	if cmd.Op == abi.OpOpen {
		p, err := readString(as, cmd.Addr, int(cmd.Len))
		if err != nil {
			return -1
		}
		typ, err := h.Open(p)
		if err != nil {
			log.Debugf("serve: open %s: %v", p, err)
			return -1
		}
		if typ == vfs.Dir {
			return OpenDir
		}
		return OpenFile
	}

	addr, n := cmd.Path()
	p, err := readString(as, addr, n)
	if err != nil {
		return -1
	}

	switch cmd.Op {
	case abi.OpRead:
		buf := make([]byte, cmd.Len)
		n, err := h.Read(p, int64(cmd.Offset), buf)
		if err != nil {
			log.Debugf("serve: read %s: %v", p, err)
			return -1
		}
		if _, err := as.WriteAt(buf[:n], cmd.Addr); err != nil {
			return -1
		}
		return int64(n)

	case abi.OpWrite:
		buf := make([]byte, cmd.Len)
		if _, err := as.ReadAt(buf, cmd.Addr); err != nil {
			return -1
		}
		n, err := h.Write(p, int64(cmd.Offset), buf)
		if err != nil {
			log.Debugf("serve: write %s: %v", p, err)
			return -1
		}
		return int64(n)

	case abi.OpSize:
		size, err := h.Size(p)
		if err != nil {
			return -1
		}
		return size

	case abi.OpList:
		entries, err := h.List(p)
		if err != nil {
			log.Debugf("serve: list %s: %v", p, err)
			return -1
		}
		names := abi.NameList(entries)
		if names.Size() > int(cmd.Len) {
			return int64(names.Size())
		}
		if _, err := as.WriteAt(abi.Marshal(names), cmd.Addr); err != nil {
			return -1
		}
		return int64(names.Size())

	case abi.OpIoctl:
		v, err := h.Ioctl(p, cmd.Offset, cmd.Addr)
		if err != nil {
			return -1
		}
		return int64(v)
	}

	log.Errorf("serve: unknown op %v", cmd.Op)
	return -1
}
