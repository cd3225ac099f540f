package example

import (
	"github.com/reduct-os/kvfs/config"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var _ config.DSI = (*ds)(nil)

func NewDS(drivers map[string]string) config.DSI {
	return &ds{Drivers: drivers}
}

type ds struct {
	Drivers map[string]string
}

func (d *ds) DriverDir(name string) (dir string, err error) {
	if dir, ok := d.Drivers[name]; ok {
		return dir, nil
	}
	err = config.ErrDriverNotFound
	return
}

func (d *ds) DriverNames() []string {
	names := maps.Keys(d.Drivers)
	slices.Sort(names)
	return names
}
