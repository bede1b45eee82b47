// Package config provides configuration management for neti.
//
// Config file locations (priority order):
//  1. $NETI_CONFIG
//  2. ./neti.yaml
//  3. $XDG_CONFIG_HOME/neti/config.yaml
//  4. ~/.config/neti/config.yaml
//  5. /etc/neti/config.yaml
//
// Missing sections fall back to defaults, so an empty file is a valid config.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults shared with the adapters
const (
	DefaultRunnerTimeout    = 30 * time.Second
	DefaultNmapTimeout      = 10 * time.Minute
	DefaultConnectTimeout   = 10 * time.Second
	DefaultCommandTimeout   = 60 * time.Second
	DefaultAnalysisTimeout  = 60 * time.Second
	DefaultSourceTimeout    = 30 * time.Second
	DefaultSubdomainThreads = 40
	DefaultGeminiEndpoint   = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel      = "gemini-pro-latest"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 10
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.FilePath == "" {
		c.Log.FilePath = "./logs/neti.log"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 30
	}

	if c.Runner.Timeout == 0 {
		c.Runner.Timeout = Duration(DefaultRunnerTimeout)
	}

	if c.Probes.PingBinary == "" {
		c.Probes.PingBinary = "ping"
	}
	if c.Probes.TracerouteBinary == "" {
		c.Probes.TracerouteBinary = "traceroute"
	}
	if c.Probes.NslookupBinary == "" {
		c.Probes.NslookupBinary = "nslookup"
	}

	if c.Nmap.Timeout == 0 {
		c.Nmap.Timeout = Duration(DefaultNmapTimeout)
	}

	if c.Device.ConnectTimeout == 0 {
		c.Device.ConnectTimeout = Duration(DefaultConnectTimeout)
	}
	if c.Device.CommandTimeout == 0 {
		c.Device.CommandTimeout = Duration(DefaultCommandTimeout)
	}
	if c.Device.Port == 0 {
		c.Device.Port = 22
	}
	if c.Device.HostKeyPolicy == "" {
		c.Device.HostKeyPolicy = HostKeyTOFU
	}
	if c.Device.HostKeyDBPath == "" {
		c.Device.HostKeyDBPath = "./neti-hostkeys.db"
	}

	if c.Subdomain.Threads == 0 {
		c.Subdomain.Threads = DefaultSubdomainThreads
	}
	if c.Subdomain.SourceTimeout == 0 {
		c.Subdomain.SourceTimeout = Duration(DefaultSourceTimeout)
	}
	if c.Subdomain.RatePerSource == 0 {
		c.Subdomain.RatePerSource = 2
	}

	if c.Analysis.Endpoint == "" {
		c.Analysis.Endpoint = DefaultGeminiEndpoint
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = DefaultGeminiModel
	}
	if c.Analysis.APIKeyEnv == "" {
		c.Analysis.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = Duration(DefaultAnalysisTimeout)
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	switch c.Log.Output {
	case "stdout", "stderr", "file", "both":
	default:
		errs = append(errs, fmt.Errorf("log.output: unknown output %q", c.Log.Output))
	}

	switch c.Device.HostKeyPolicy {
	case HostKeyInsecure, HostKeyTOFU:
	case HostKeyKnownHosts:
		if c.Device.KnownHostsPath == "" {
			errs = append(errs, errors.New("device.known_hosts_path: required for known_hosts policy"))
		}
	default:
		errs = append(errs, fmt.Errorf("device.host_key_policy: unknown policy %q", c.Device.HostKeyPolicy))
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		errs = append(errs, fmt.Errorf("device.port: %d out of range", c.Device.Port))
	}

	if c.Runner.Timeout < 0 || c.Nmap.Timeout < 0 || c.Device.ConnectTimeout < 0 ||
		c.Device.CommandTimeout < 0 || c.Subdomain.SourceTimeout < 0 || c.Analysis.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Subdomain.Threads < 0 {
		errs = append(errs, fmt.Errorf("subdomain.threads: %d must be positive", c.Subdomain.Threads))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit: must not be negative"))
	}

	return errors.Join(errs...)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Server: %s (%s), Log: %s/%s\n", c.Server.Addr, c.Server.Mode, c.Log.Level, c.Log.Format)
	summary += fmt.Sprintf("Runner timeout: %s, Nmap timeout: %s, SSH connect: %s\n",
		c.Runner.Timeout.Duration(), c.Nmap.Timeout.Duration(), c.Device.ConnectTimeout.Duration())
	summary += fmt.Sprintf("Host key policy: %s, Subdomain threads: %d", c.Device.HostKeyPolicy, c.Subdomain.Threads)
	return summary
}
