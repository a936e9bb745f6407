//go:build linux

package wireless

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"net-monitor/internal/model"
)

// Wireless extension request codes.
const (
	siocgiwmode  = 0x8B07
	siocgiwrange = 0x8B0B
	siocgiwap    = 0x8B15
	siocgiwessid = 0x8B1B
	siocgiwrate  = 0x8B21
)

const (
	essidMaxSize = 32
	rangeBufSize = 4096
)

type iwreq struct {
	name [unix.IFNAMSIZ]byte
	data [16]byte
}

type iwPoint struct {
	pointer unsafe.Pointer
	length  uint16
	flags   uint16
}

type iwreqPoint struct {
	name  [unix.IFNAMSIZ]byte
	point iwPoint
	_     [16 - unsafe.Sizeof(iwPoint{})]byte
}

// Probe issues wireless-extension ioctls over one datagram socket.
type Probe struct {
	mu         sync.Mutex
	fd         int
	maxQuality map[string]int
}

func NewProbe() (*Probe, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open wireless control socket: %w", err)
	}
	return &Probe{fd: fd, maxQuality: map[string]int{}}, nil
}

func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}

func (p *Probe) ioctl(req uintptr, arg unsafe.Pointer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return unix.EBADF
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(p.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (p *Probe) simple(name string, req uintptr) ([16]byte, error) {
	var r iwreq
	copy(r.name[:unix.IFNAMSIZ-1], name)
	if err := p.ioctl(req, unsafe.Pointer(&r)); err != nil {
		return [16]byte{}, err
	}
	return r.data, nil
}

func (p *Probe) point(name string, req uintptr, buf []byte) (int, error) {
	var r iwreqPoint
	copy(r.name[:unix.IFNAMSIZ-1], name)
	r.point.pointer = unsafe.Pointer(&buf[0])
	r.point.length = uint16(len(buf))
	if err := p.ioctl(req, unsafe.Pointer(&r)); err != nil {
		return 0, err
	}
	return int(r.point.length), nil
}

// ESSID returns "" when the driver cannot answer.
func (p *Probe) ESSID(name string) string {
	buf := make([]byte, essidMaxSize+1)
	if _, err := p.point(name, siocgiwessid, buf); err != nil {
		return ""
	}
	return trimNUL(buf)
}

// Mode returns ModeUnknown when the query fails. A mode index outside the
// table is returned as a defect error.
func (p *Probe) Mode(name string) (model.WirelessMode, error) {
	data, err := p.simple(name, siocgiwmode)
	if err != nil {
		return model.ModeUnknown, nil
	}
	return DecodeMode(binary.NativeEndian.Uint32(data[0:4]))
}

// Bitrate returns bits per second, 0 when unknown.
func (p *Probe) Bitrate(name string) float64 {
	data, err := p.simple(name, siocgiwrate)
	if err != nil {
		return 0
	}
	m := int32(binary.NativeEndian.Uint32(data[0:4]))
	e := int16(binary.NativeEndian.Uint16(data[4:6]))
	return DecodeBitrate(m, e)
}

func (p *Probe) AccessPoint(name string) string {
	data, err := p.simple(name, siocgiwap)
	if err != nil {
		return model.UnknownValue
	}
	return decodeAccessPoint(data[:])
}

// MaxQuality returns the hardware maximum link quality, 0 when unavailable.
// Successful answers are cached per interface.
func (p *Probe) MaxQuality(name string) int {
	p.mu.Lock()
	cached, ok := p.maxQuality[name]
	p.mu.Unlock()
	if ok {
		return cached
	}
	buf := make([]byte, rangeBufSize)
	n, err := p.point(name, siocgiwrange, buf)
	if err != nil {
		return 0
	}
	q := decodeMaxQuality(buf, n)
	if q > 0 {
		p.mu.Lock()
		p.maxQuality[name] = q
		p.mu.Unlock()
	}
	return q
}

// Query collects every wireless attribute of name. link is the raw link value
// from /proc/net/wireless. The only error returned is a defect.
func (p *Probe) Query(name string, link int) (model.WirelessInfo, error) {
	mode, err := p.Mode(name)
	info := model.WirelessInfo{
		ESSID:       p.ESSID(name),
		Mode:        mode,
		Bitrate:     p.Bitrate(name),
		AccessPoint: p.AccessPoint(name),
		LinkQuality: Quality(link, p.MaxQuality(name)),
	}
	return info, err
}
