package pseudofs

import (
	"github.com/reduct-os/kvfs/vfs"
)

// AcpiFS exposes the firmware's root system description table. The blob is
// captured once at boot and never changes, so it needs no lock.
type AcpiFS struct {
	vfs.Base

	data []byte
}

func NewAcpiFS(table []byte) *AcpiFS {
	fs := &AcpiFS{data: append([]byte(nil), table...)}
	fs.InitBase()
	return fs
}

func (fs *AcpiFS) Kind() vfs.Kind {
	return vfs.KindAcpi
}

// ReadAt ignores offset: every read returns the table from its first byte.
func (fs *AcpiFS) ReadAt(offset int64, buf []byte) (int, error) {
	fs.Accessed()
	return copy(buf, fs.data), nil
}

func (fs *AcpiFS) WriteAt(offset int64, buf []byte) (int, error) {
	return 0, vfs.ErrPermission
}

func (fs *AcpiFS) Size() (int64, error) {
	return int64(len(fs.data)), nil
}
