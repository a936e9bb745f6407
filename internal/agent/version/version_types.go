package version

type GetVersionRequest struct{}

type GetVersionResponse struct {
	Version         string `json:"version"`
	CounterSource   string `json:"counter_source"`
	SocketPath      string `json:"socket_path"`
	ProbeSocketPath string `json:"probe_socket_path"`
	Interval        string `json:"interval"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}
