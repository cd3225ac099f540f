package vfs

type FileType int

const (
	// FileTypeRegularFile means the file is a regular file.
	FileTypeRegularFile FileType = iota
	// FileTypeDirectory means the file is a directory.
	FileTypeDirectory
	// FileTypeSymlink means the file is a symbolic link.
	FileTypeSymlink
	// FileTypeCharacterDevice means the file is a character device.
	FileTypeCharacterDevice
	// FileTypeFIFO means the file is a FIFO.
	FileTypeFIFO
	// FileTypeSocket means the file is a socket.
	FileTypeSocket
)

// FileTypeOf maps an inode onto the file type reported by stat.
func FileTypeOf(i Inode) FileType {
	if i.Type() == Dir {
		return FileTypeDirectory
	}
	switch i.Kind() {
	case KindAcpi, KindFramebuffer:
		return FileTypeCharacterDevice
	case KindPipe:
		return FileTypeFIFO
	}
	return FileTypeRegularFile
}
