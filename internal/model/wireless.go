package model

// WirelessMode indexes the fixed wireless-extension mode table.
type WirelessMode int

const (
	ModeUnknown WirelessMode = -1
	ModeAuto    WirelessMode = iota - 1
	ModeAdHoc
	ModeManaged
	ModeMaster
	ModeRepeat
	ModeSecond
	ModeMonitor
)

var wirelessModeNames = [...]string{"Auto", "Ad-Hoc", "Managed", "Master", "Repeat", "Second", "Monitor"}

const UnknownValue = "unknown"

func WirelessModeCount() int {
	return len(wirelessModeNames)
}

func (m WirelessMode) Valid() bool {
	return m >= 0 && int(m) < len(wirelessModeNames)
}

func (m WirelessMode) String() string {
	if !m.Valid() {
		return UnknownValue
	}
	return wirelessModeNames[m]
}

func (m WirelessMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *WirelessMode) UnmarshalText(text []byte) error {
	for i, name := range wirelessModeNames {
		if name == string(text) {
			*m = WirelessMode(i)
			return nil
		}
	}
	*m = ModeUnknown
	return nil
}

type WirelessInfo struct {
	ESSID       string       `json:"essid"`
	Mode        WirelessMode `json:"mode"`
	Bitrate     float64      `json:"bitrate"`
	AccessPoint string       `json:"access_point"`
	LinkQuality float64      `json:"link_quality"`
}
