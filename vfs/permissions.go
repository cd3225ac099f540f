package vfs

// Permissions of a file, expressed for the owner; ToMode replicates them to
// group and other.
type Permissions uint8

const (
	PermissionsRead Permissions = 1 << iota
	PermissionsWrite
	PermissionsExecute
)

// NewPermissionsFromMode picks the owner bits out of a Unix mode.
func NewPermissionsFromMode(m uint32) Permissions {
	var p Permissions
	if m&0400 != 0 {
		p |= PermissionsRead
	}
	if m&0200 != 0 {
		p |= PermissionsWrite
	}
	if m&0100 != 0 {
		p |= PermissionsExecute
	}
	return p
}

func (p Permissions) ToMode() uint32 {
	var m uint32
	if p&PermissionsRead != 0 {
		m |= 0444
	}
	if p&PermissionsWrite != 0 {
		m |= 0200
	}
	if p&PermissionsExecute != 0 {
		m |= 0111
	}
	return m
}
