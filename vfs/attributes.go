package vfs

import (
	"time"
)

// AttributesMask records which fields of an Attributes value are set.
type AttributesMask uint32

const (
	AttributesMaskDeviceNumber AttributesMask = 1 << iota
	AttributesMaskFileType
	AttributesMaskInodeNumber
	AttributesMaskLastDataModificationTime
	AttributesMaskAccessTime
	AttributesMaskLastStatusChangeTime
	AttributesMaskLinkCount
	AttributesMaskPermissions
	AttributesMaskSizeBytes
	AttributesMaskOwner
)

// Attributes is the metadata of an inode as the stat syscall reports it.
// The file type, inode number and link count are always set by
// GetAttributes; every other field may be absent.
type Attributes struct {
	fieldsPresent AttributesMask

	deviceNumber uint64
	fileType     FileType
	inodeNumber  uint64
	mTime        time.Time
	aTime        time.Time
	cTime        time.Time
	linkCount    uint32
	permissions  Permissions
	sizeBytes    uint64
	uid          uint32
	gid          uint32
}

func (a *Attributes) has(m AttributesMask) bool {
	return a.fieldsPresent&m != 0
}

func (a *Attributes) mustHave(m AttributesMask, field string) {
	if !a.has(m) {
		panic("attributes: " + field + " not set")
	}
}

// GetDeviceNumber returns the device number. For kernel inodes it is the
// inode's Kind.
func (a *Attributes) GetDeviceNumber() (uint64, bool) {
	return a.deviceNumber, a.has(AttributesMaskDeviceNumber)
}

func (a *Attributes) SetDeviceNumber(deviceNumber uint64) *Attributes {
	a.deviceNumber = deviceNumber
	a.fieldsPresent |= AttributesMaskDeviceNumber
	return a
}

func (a *Attributes) GetFileType() FileType {
	a.mustHave(AttributesMaskFileType, "file type")
	return a.fileType
}

func (a *Attributes) SetFileType(fileType FileType) *Attributes {
	a.fileType = fileType
	a.fieldsPresent |= AttributesMaskFileType
	return a
}

func (a *Attributes) GetInodeNumber() uint64 {
	a.mustHave(AttributesMaskInodeNumber, "inode number")
	return a.inodeNumber
}

func (a *Attributes) SetInodeNumber(inodeNumber uint64) *Attributes {
	a.inodeNumber = inodeNumber
	a.fieldsPresent |= AttributesMaskInodeNumber
	return a
}

func (a *Attributes) GetLastDataModificationTime() (time.Time, bool) {
	return a.mTime, a.has(AttributesMaskLastDataModificationTime)
}

func (a *Attributes) SetLastDataModificationTime(mTime time.Time) *Attributes {
	a.mTime = mTime
	a.fieldsPresent |= AttributesMaskLastDataModificationTime
	return a
}

func (a *Attributes) GetLastStatusChangeTime() (time.Time, bool) {
	return a.cTime, a.has(AttributesMaskLastStatusChangeTime)
}

func (a *Attributes) SetLastStatusChangeTime(cTime time.Time) *Attributes {
	a.cTime = cTime
	a.fieldsPresent |= AttributesMaskLastStatusChangeTime
	return a
}

func (a *Attributes) GetAccessTime() (time.Time, bool) {
	return a.aTime, a.has(AttributesMaskAccessTime)
}

func (a *Attributes) SetAccessTime(aTime time.Time) *Attributes {
	a.aTime = aTime
	a.fieldsPresent |= AttributesMaskAccessTime
	return a
}

func (a *Attributes) GetLinkCount() uint32 {
	a.mustHave(AttributesMaskLinkCount, "link count")
	return a.linkCount
}

func (a *Attributes) SetLinkCount(linkCount uint32) *Attributes {
	a.linkCount = linkCount
	a.fieldsPresent |= AttributesMaskLinkCount
	return a
}

func (a *Attributes) GetPermissions() (Permissions, bool) {
	return a.permissions, a.has(AttributesMaskPermissions)
}

func (a *Attributes) SetPermissions(permissions Permissions) *Attributes {
	a.permissions = permissions
	a.fieldsPresent |= AttributesMaskPermissions
	return a
}

func (a *Attributes) GetSizeBytes() (uint64, bool) {
	return a.sizeBytes, a.has(AttributesMaskSizeBytes)
}

func (a *Attributes) SetSizeBytes(sizeBytes uint64) *Attributes {
	a.sizeBytes = sizeBytes
	a.fieldsPresent |= AttributesMaskSizeBytes
	return a
}

// GetOwner returns the user and group owning the inode. Kernel inodes are
// owned by 0:0; there is no chown.
func (a *Attributes) GetOwner() (uid, gid uint32, ok bool) {
	return a.uid, a.gid, a.has(AttributesMaskOwner)
}

func (a *Attributes) SetOwner(uid, gid uint32) *Attributes {
	a.uid, a.gid = uid, gid
	a.fieldsPresent |= AttributesMaskOwner
	return a
}
