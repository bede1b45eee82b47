package main

import (
	"github.com/spf13/cobra"

	"neti/internal/config"
	"neti/internal/logging"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	// loadedPath is the config file load found, "" when running on defaults
	loadedPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "neti",
		Short: "Network reconnaissance orchestrator",
		Long: `neti runs network reconnaissance scans against operator-supplied targets:
ping, traceroute, nslookup and nmap profiles against hosts, subdomain
enumeration against domains, configuration retrieval from network devices
over SSH, and mail posture checks for email addresses.

Examples:
  neti serve --config /etc/neti/config.yaml
  neti scan nmap 192.0.2.10 --type quick_scan
  neti scan subdomain example.com --bruteforce
  neti scan device 192.0.2.1 --device-type mikrotik --username admin
  neti analyze --file scan.txt
  neti doctor`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file path (default: search $NETI_CONFIG, ./neti.yaml, ~/.config/neti)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format override (text, json)")

	cmd.AddCommand(
		newServeCmd(opts),
		newScanCmd(opts),
		newAnalyzeCmd(opts),
		newHostKeysCmd(opts),
		newDoctorCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the config and builds the logger, applying flag overrides.
// One-shot commands keep stdout for results, so their logs go to stderr.
func (o *rootOptions) load(oneShot bool) (*config.Config, *logging.Logger, error) {
	cfg, path, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	o.loadedPath = path
	o.applyOverrides(cfg, oneShot)

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		log.WithField("path", path).Debug("Config: loaded")
	} else {
		log.Debug("Config: no config file found, using defaults")
	}
	return cfg, log, nil
}

// applyOverrides puts command-line flags on top of the file
func (o *rootOptions) applyOverrides(cfg *config.Config, oneShot bool) {
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if oneShot && cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
}
