package pseudofs

import (
	"sync"

	"github.com/reduct-os/kvfs/vfs"
)

// PipeFS is an anonymous pipe: an unbounded byte queue. A read waits until
// the queue holds data, then takes everything that fits in the caller's
// buffer at once. Offsets are ignored on both sides.
type PipeFS struct {
	vfs.Base

	mu    sync.Mutex
	queue []byte

	// ready holds a token while the queue may be non-empty.
	ready chan struct{}
}

func NewPipeFS() *PipeFS {
	p := &PipeFS{ready: make(chan struct{}, 1)}
	p.InitBase()
	return p
}

func (p *PipeFS) Kind() vfs.Kind {
	return vfs.KindPipe
}

func (p *PipeFS) WriteAt(offset int64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	p.queue = append(p.queue, buf...)
	p.Touch()
	p.mu.Unlock()

	p.signal()
	return len(buf), nil
}

// ReadAt blocks until data is queued, then drains the queue into buf.
// Bytes that do not fit stay queued for the next read.
func (p *PipeFS) ReadAt(offset int64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			n := copy(buf, p.queue)
			p.queue = append(p.queue[:0], p.queue[n:]...)
			left := len(p.queue)
			p.Accessed()
			p.mu.Unlock()

			if left > 0 {
				p.signal()
			}
			return n, nil
		}
		p.mu.Unlock()

		<-p.ready
	}
}

func (p *PipeFS) signal() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// Size is the number of queued bytes.
func (p *PipeFS) Size() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.queue)), nil
}
