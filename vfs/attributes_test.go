package vfs_test

import (
	"testing"

	"github.com/reduct-os/kvfs/pseudofs"
	"github.com/reduct-os/kvfs/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAttributes(t *testing.T) {
	f := pseudofs.NewMemFile()
	_, err := f.WriteAt(0, []byte("hello"))
	require.NoError(t, err)

	a, err := vfs.GetAttributes(f)
	require.NoError(t, err)

	size, ok := a.GetSizeBytes()
	require.True(t, ok)
	assert.EqualValues(t, 5, size)
	assert.Equal(t, f.Ino(), a.GetInodeNumber())
	assert.Equal(t, vfs.FileTypeRegularFile, a.GetFileType())
	assert.EqualValues(t, 1, a.GetLinkCount())
	uid, gid, ok := a.GetOwner()
	require.True(t, ok)
	assert.Zero(t, uid)
	assert.Zero(t, gid)

	mtime, ok := a.GetLastDataModificationTime()
	require.True(t, ok)
	assert.False(t, mtime.IsZero())
}

func TestAttributesMandatoryFields(t *testing.T) {
	a := &vfs.Attributes{}
	_, ok := a.GetSizeBytes()
	assert.False(t, ok)
	assert.Panics(t, func() { a.GetInodeNumber() })
	assert.Panics(t, func() { a.GetFileType() })
	assert.NotPanics(t, func() { a.SetLinkCount(2).GetLinkCount() })
}

func TestFileTypeOf(t *testing.T) {
	fb, err := pseudofs.NewFbFS(1, 1, make([]byte, 4))
	require.NoError(t, err)

	assert.Equal(t, vfs.FileTypeDirectory, vfs.FileTypeOf(pseudofs.NewRootFS()))
	assert.Equal(t, vfs.FileTypeRegularFile, vfs.FileTypeOf(pseudofs.NewMemFile()))
	assert.Equal(t, vfs.FileTypeFIFO, vfs.FileTypeOf(pseudofs.NewPipeFS()))
	assert.Equal(t, vfs.FileTypeCharacterDevice, vfs.FileTypeOf(pseudofs.NewAcpiFS(nil)))
	assert.Equal(t, vfs.FileTypeCharacterDevice, vfs.FileTypeOf(fb))
}

func TestGetFSAttributes(t *testing.T) {
	a, err := vfs.GetFSAttributes(pseudofs.NewAcpiFS(make([]byte, 5000)), 4096)
	require.NoError(t, err)

	blocks, ok := a.GetBlocks()
	require.True(t, ok)
	assert.EqualValues(t, 2, blocks)
	free, _ := a.GetFreeBlocks()
	assert.Zero(t, free)
}
