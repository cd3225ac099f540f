package config

import (
	"errors"
)

var ErrDriverNotFound = errors.New("driver not found")

type DriverDirI interface {
	// DriverDir returns the host directory served under name.
	DriverDir(name string) (dir string, err error)
}
type DriverListI interface {
	DriverNames() []string
}

// DSI supplies the user-space drivers to start.
type DSI interface {
	DriverDirI
	DriverListI
}
