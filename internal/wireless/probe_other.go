//go:build !linux

package wireless

import (
	"errors"

	"net-monitor/internal/model"
)

type Probe struct{}

func NewProbe() (*Probe, error) {
	return nil, errors.New("wireless extensions are only available on linux")
}

func (p *Probe) Close() error { return nil }

func (p *Probe) Query(name string, link int) (model.WirelessInfo, error) {
	return model.WirelessInfo{Mode: model.ModeUnknown, AccessPoint: model.UnknownValue}, nil
}
