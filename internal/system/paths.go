package system

import "path/filepath"

// Paths locates the kernel tables and external files the readers consume.
type Paths struct {
	Proc       string
	Sys        string
	ResolvConf string
	VnstatDir  string
}

func DefaultPaths() Paths {
	return Paths{
		Proc:       "/proc",
		Sys:        "/sys",
		ResolvConf: "/etc/resolv.conf",
		VnstatDir:  "/var/lib/vnstat",
	}
}

func (p Paths) NetDev() string { return filepath.Join(p.Proc, "net", "dev") }
func (p Paths) NetWireless() string { return filepath.Join(p.Proc, "net", "wireless") }
func (p Paths) NetRoute() string { return filepath.Join(p.Proc, "net", "route") }
func (p Paths) NetProto(proto string) string {
	return filepath.Join(p.Proc, "net", proto)
}

func (p Paths) netClass(name string, attr ...string) string {
	return filepath.Join(append([]string{p.Sys, "class", "net", name}, attr...)...)
}
