package system

import (
	"golang.org/x/sync/singleflight"

	"net-monitor/internal/model"
)

// Tables serves the auxiliary kernel tables. Concurrent requests for the same
// table share one read.
type Tables struct {
	paths Paths
	group singleflight.Group
}

func NewTables(paths Paths) *Tables {
	return &Tables{paths: paths}
}

func (t *Tables) Routes() ([]model.Route, error) {
	v, err, _ := t.group.Do("route", func() (any, error) {
		return ReadRoutes(t.paths)
	})
	return v.([]model.Route), err
}

func (t *Tables) Nameservers() ([]string, error) {
	v, err, _ := t.group.Do("resolv", func() (any, error) {
		return ReadNameservers(t.paths)
	})
	return v.([]string), err
}

func (t *Tables) Connections(proto string) ([]model.Connection, error) {
	v, err, _ := t.group.Do("conn:"+proto, func() (any, error) {
		return ReadConnections(t.paths, proto)
	})
	return v.([]model.Connection), err
}
