package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Runner    RunnerConfig    `yaml:"runner"`
	Probes    ProbeConfig     `yaml:"probes"`
	Nmap      NmapConfig      `yaml:"nmap"`
	Device    DeviceConfig    `yaml:"device"`
	Subdomain SubdomainConfig `yaml:"subdomain"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
	// RateLimit is the sustained request rate for scan routes (per second, 0 = unlimited)
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text, json
	Output     string `yaml:"output"` // stdout, stderr, file, both
	FilePath   string `yaml:"file_path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RunnerConfig bounds external command execution
type RunnerConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// ProbeConfig names the binaries behind the simple probes
type ProbeConfig struct {
	PingBinary       string `yaml:"ping_binary"`
	TracerouteBinary string `yaml:"traceroute_binary"`
	NslookupBinary   string `yaml:"nslookup_binary"`
}

// NmapConfig holds port scan settings
type NmapConfig struct {
	BinaryPath string   `yaml:"binary_path,omitempty"` // empty = look up nmap in $PATH
	Timeout    Duration `yaml:"timeout"`
}

// DeviceConfig holds remote device (SSH) settings
type DeviceConfig struct {
	ConnectTimeout Duration `yaml:"connect_timeout"`
	CommandTimeout Duration `yaml:"command_timeout"`
	Port           int      `yaml:"port"`
	HostKeyPolicy  string   `yaml:"host_key_policy"` // insecure, tofu, known_hosts
	KnownHostsPath string   `yaml:"known_hosts_path,omitempty"`
	HostKeyDBPath  string   `yaml:"host_key_db_path"`
}

// SubdomainConfig holds subdomain engine settings
type SubdomainConfig struct {
	Threads       int      `yaml:"threads"`
	SourceTimeout Duration `yaml:"source_timeout"`
	// RatePerSource is the request rate allowed per passive source (per second)
	RatePerSource float64  `yaml:"rate_per_source"`
	Sources       []string `yaml:"sources,omitempty"` // empty = all passive sources
	Bruteforce    bool     `yaml:"bruteforce"`
	Wordlist      []string `yaml:"wordlist,omitempty"` // empty = built-in wordlist
	Nameservers   []string `yaml:"nameservers,omitempty"`
}

// AnalysisConfig holds LLM report generation settings
type AnalysisConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	Model     string   `yaml:"model"`
	APIKeyEnv string   `yaml:"api_key_env"` // name of env var holding the key, never the key itself
	Timeout   Duration `yaml:"timeout"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Host key policies
const (
	HostKeyInsecure   = "insecure"
	HostKeyTOFU       = "tofu"
	HostKeyKnownHosts = "known_hosts"
)

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
