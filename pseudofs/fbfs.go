package pseudofs

import (
	"fmt"
	"sync"

	"github.com/reduct-os/kvfs/vfs"
	log "github.com/sirupsen/logrus"
)

const (
	IoctlFbWidth  = 1
	IoctlFbHeight = 2

	// BytesPerPixel of the linear framebuffer (32 bpp).
	BytesPerPixel = 4
)

// FbFS is the linear framebuffer device. Writes are byte level blits into
// the pixel buffer; reading back is not supported.
type FbFS struct {
	vfs.Base

	width  int
	height int

	mu     sync.Mutex
	pixels []byte
}

// NewFbFS wraps a pixel buffer of width*height 32 bit pixels.
func NewFbFS(width, height int, pixels []byte) (*FbFS, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*BytesPerPixel {
		return nil, fmt.Errorf("framebuffer %dx%d with %d bytes: %w", width, height, len(pixels), vfs.ErrInvalid)
	}
	fs := &FbFS{
		width:  width,
		height: height,
		pixels: pixels,
	}
	fs.InitBase()
	return fs, nil
}

func (fs *FbFS) Kind() vfs.Kind {
	return vfs.KindFramebuffer
}

// WriteAt copies buf to offset. A write that would run past the end of the
// buffer writes nothing.
func (fs *FbFS) WriteAt(offset int64, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if offset < 0 || offset > int64(len(fs.pixels))-int64(len(buf)) {
		log.Debugf("fb: write of %d bytes at %d out of bounds", len(buf), offset)
		return 0, nil
	}
	copy(fs.pixels[offset:], buf)
	fs.Touch()
	return len(buf), nil
}

func (fs *FbFS) Size() (int64, error) {
	return int64(len(fs.pixels)), nil
}

func (fs *FbFS) Ioctl(cmd, arg uint64) (uint64, error) {
	switch cmd {
	case IoctlFbWidth:
		return uint64(fs.width), nil
	case IoctlFbHeight:
		return uint64(fs.height), nil
	}
	return 0, nil
}
