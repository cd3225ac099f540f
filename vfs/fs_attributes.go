package vfs

// FSAttributesMask is a bitmask of the filesystem statistics present in an
// FSAttributes value.
type FSAttributesMask uint32

const (
	AttributesMaskBlockSize FSAttributesMask = 1 << iota
	AttributesMaskBlocks
	AttributesMaskFreeBlocks
	AttributesMaskAvailableBlocks
)

type FSAttributes struct {
	fieldsPresent FSAttributesMask
	bsize         uint64 // block size
	blocks        uint64 // total data blocks in file system
	bfree         uint64 // free blocks in fs
	bavail        uint64 // free blocks avail to non-superuser
}

func (a *FSAttributes) GetBlockSize() (uint64, bool) {
	return a.bsize, a.fieldsPresent&AttributesMaskBlockSize != 0
}

func (a *FSAttributes) SetBlockSize(bsize uint64) *FSAttributes {
	a.bsize = bsize
	a.fieldsPresent |= AttributesMaskBlockSize
	return a
}

func (a *FSAttributes) GetBlocks() (uint64, bool) {
	return a.blocks, a.fieldsPresent&AttributesMaskBlocks != 0
}

func (a *FSAttributes) SetBlocks(blocks uint64) *FSAttributes {
	a.blocks = blocks
	a.fieldsPresent |= AttributesMaskBlocks
	return a
}

func (a *FSAttributes) GetFreeBlocks() (uint64, bool) {
	return a.bfree, a.fieldsPresent&AttributesMaskFreeBlocks != 0
}

func (a *FSAttributes) SetFreeBlocks(freeBlocks uint64) *FSAttributes {
	a.bfree = freeBlocks
	a.fieldsPresent |= AttributesMaskFreeBlocks
	return a
}

func (a *FSAttributes) GetAvailableBlocks() (uint64, bool) {
	return a.bavail, a.fieldsPresent&AttributesMaskAvailableBlocks != 0
}

func (a *FSAttributes) SetAvailableBlocks(availBlocks uint64) *FSAttributes {
	a.bavail = availBlocks
	a.fieldsPresent |= AttributesMaskAvailableBlocks
	return a
}

// GetFSAttributes reports statistics for the filesystem holding an inode.
// Kernel resident filesystems have no free space to speak of: the totals
// cover the inode itself and nothing is free.
func GetFSAttributes(i Inode, blockSize uint64) (*FSAttributes, error) {
	size, err := i.Size()
	if err != nil {
		return nil, err
	}
	blocks := (uint64(size) + blockSize - 1) / blockSize

	a := &FSAttributes{}
	a.SetBlockSize(blockSize)
	a.SetBlocks(blocks)
	a.SetFreeBlocks(0)
	a.SetAvailableBlocks(0)
	return a, nil
}
