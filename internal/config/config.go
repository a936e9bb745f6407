package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type CounterSource string

const (
	CounterSourceProc   CounterSource = "proc"
	CounterSourcePsutil CounterSource = "psutil"
	HardcodedVersion    string        = "V0.1"
)

const DefaultEnvFile = "/etc/net-monitor.env"

type Config struct {
	Version         string
	EnvFile         string
	Interval        time.Duration
	HistorySize     int
	PruneStale      bool
	CounterSource   CounterSource
	TickTimeout     time.Duration
	ErrorBackoff    time.Duration
	SocketPath      string
	ProbeSocketPath string
	ShutdownTimeout time.Duration
	WireGuard       bool
	ProcRoot        string
	SysRoot         string
	ResolvConf      string
	UptimeLog       string
	VnstatDir       string
	LogJSON         bool
	LogLevel        string
}

// Load reads the optional env file first. Variables already set in the
// process environment win over the file.
func Load() (Config, error) {
	envFile := env("NETMON_ENV_FILE", DefaultEnvFile)
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Version:         HardcodedVersion,
		EnvFile:         envFile,
		Interval:        envDuration("NETMON_INTERVAL", 1*time.Second),
		HistorySize:     envInt("NETMON_HISTORY_SIZE", 50),
		PruneStale:      envBool("NETMON_PRUNE_STALE", false),
		CounterSource:   CounterSource(strings.ToLower(env("NETMON_COUNTER_SOURCE", string(CounterSourceProc)))),
		TickTimeout:     envDuration("NETMON_TICK_TIMEOUT", 5*time.Second),
		ErrorBackoff:    envDuration("NETMON_ERROR_BACKOFF", 1500*time.Millisecond),
		SocketPath:      env("NETMON_SOCKET", "/run/net-monitor/netmond.sock"),
		ProbeSocketPath: env("NETMON_PROBE_SOCKET", "/run/net-monitor/probe.sock"),
		ShutdownTimeout: envDuration("NETMON_SHUTDOWN_TIMEOUT", 5*time.Second),
		WireGuard:       envBool("NETMON_WIREGUARD", true),
		ProcRoot:        env("NETMON_PROC_ROOT", "/proc"),
		SysRoot:         env("NETMON_SYS_ROOT", "/sys"),
		ResolvConf:      env("NETMON_RESOLV_CONF", "/etc/resolv.conf"),
		UptimeLog:       env("NETMON_UPTIME_LOG", "/var/log/net_monitor.log"),
		VnstatDir:       env("NETMON_VNSTAT_DIR", "/var/lib/vnstat"),
		LogJSON:         envBool("NETMON_LOG_JSON", false),
		LogLevel:        strings.ToLower(env("NETMON_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("NETMON_INTERVAL must be > 0")
	}
	if c.HistorySize <= 0 {
		return errors.New("NETMON_HISTORY_SIZE must be > 0")
	}
	if c.TickTimeout <= 0 {
		return errors.New("NETMON_TICK_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("NETMON_SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.CounterSource {
	case CounterSourceProc, CounterSourcePsutil:
	default:
		return fmt.Errorf("unsupported counter source %q", c.CounterSource)
	}
	if strings.TrimSpace(c.SocketPath) == "" {
		return errors.New("NETMON_SOCKET is required")
	}
	if c.ProcRoot == "" || c.SysRoot == "" {
		return errors.New("NETMON_PROC_ROOT and NETMON_SYS_ROOT must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
