package main

import (
	"fmt"

	"neti/internal/adapter"
	"neti/internal/config"
	"neti/internal/logging"
	"neti/internal/metrics"
	"neti/internal/report"
	"neti/internal/repository"
	"neti/internal/repository/sqlite"
	"neti/internal/resolver"
	"neti/internal/runner"
	"neti/internal/service"
	"neti/internal/subdomain"
)

// stack is every long-lived component, wired from one config
type stack struct {
	cfg *config.Config
	log *logging.Logger

	hostKeys   *sqlite.Repository // nil unless the tofu policy is in use
	resolver   *resolver.Resolver
	sources    adapter.SourceFactory
	dispatcher *adapter.Dispatcher
	registry   *adapter.Registry
	analyzer   *report.GeminiAnalyzer
	metrics    *metrics.Metrics
	events     *service.EventBus
	scans      *service.ScanService
}

type stackOptions struct {
	// withMetrics registers the prometheus collectors
	withMetrics bool
	// bruteforce overrides the configured subdomain profile
	bruteforce bool
}

func buildStack(cfg *config.Config, log *logging.Logger, opts stackOptions) (*stack, error) {
	s := &stack{cfg: cfg, log: log, events: service.NewEventBus()}

	// Host key store
	if cfg.Device.HostKeyPolicy == config.HostKeyTOFU {
		repo, err := sqlite.New(cfg.Device.HostKeyDBPath)
		if err != nil {
			return nil, fmt.Errorf("open host key store: %w", err)
		}
		s.hostKeys = repo
		log.WithField("path", cfg.Device.HostKeyDBPath).Debug("Stack: host key store opened")
	}
	policy, err := adapter.NewHostKeyPolicy(cfg.Device.HostKeyPolicy, s.hostKeyStore(), cfg.Device.KnownHostsPath, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Process-backed probes
	run := runner.New(
		runner.WithTimeout(cfg.Runner.Timeout.Duration()),
		runner.WithLogger(log.Component("runner")),
	)
	probes := adapter.NewProbeAdapter(run, adapter.ProbeBinaries{
		Ping:       cfg.Probes.PingBinary,
		Traceroute: cfg.Probes.TracerouteBinary,
		Nslookup:   cfg.Probes.NslookupBinary,
	}, log)

	portScan := adapter.NewNmapAdapter(
		adapter.WithTimeout(cfg.Nmap.Timeout.Duration()),
		adapter.WithBinaryPath(cfg.Nmap.BinaryPath),
		adapter.WithNmapLogger(log),
	)

	// DNS-backed adapters share one resolver
	s.resolver = resolver.New(cfg.Subdomain.Nameservers, 0)
	srcCfg := subdomain.SourceConfig{
		Names:         cfg.Subdomain.Sources,
		Timeout:       cfg.Subdomain.SourceTimeout.Duration(),
		RatePerSource: cfg.Subdomain.RatePerSource,
		Wordlist:      cfg.Subdomain.Wordlist,
	}
	s.sources = func(p subdomain.Profile) ([]subdomain.Source, error) {
		return subdomain.BuildSources(p, srcCfg, s.resolver)
	}
	profile := subdomain.Profile{
		Threads:    cfg.Subdomain.Threads,
		Bruteforce: cfg.Subdomain.Bruteforce || opts.bruteforce,
		Silent:     true,
	}
	// unknown source names fail here rather than on the first scan
	if _, err := s.sources(profile); err != nil {
		s.Close()
		return nil, fmt.Errorf("subdomain sources: %w", err)
	}
	sub := adapter.NewSubdomainAdapter(profile, s.sources, log)

	device := adapter.NewDeviceAdapter(nil, policy, adapter.DeviceConfig{
		ConnectTimeout: cfg.Device.ConnectTimeout.Duration(),
		CommandTimeout: cfg.Device.CommandTimeout.Duration(),
		Port:           cfg.Device.Port,
	}, log)

	email := adapter.NewEmailAdapter(s.resolver, log)

	s.dispatcher = adapter.NewDispatcher(probes, portScan, sub, device, email, log)
	s.registry = adapter.NewRegistry(log)
	for _, a := range s.dispatcher.Adapters() {
		if err := s.registry.Register(a); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.analyzer = report.NewGeminiAnalyzer(report.GeminiConfig{
		Endpoint:  cfg.Analysis.Endpoint,
		Model:     cfg.Analysis.Model,
		APIKeyEnv: cfg.Analysis.APIKeyEnv,
		Timeout:   cfg.Analysis.Timeout.Duration(),
	}, log)

	if opts.withMetrics {
		m, err := metrics.New()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		s.metrics = m
	}

	s.scans = service.NewScanService(s.dispatcher, s.analyzer, s.metrics, s.events, log)
	return s, nil
}

// hostKeyStore avoids handing a typed nil to the policy constructor
func (s *stack) hostKeyStore() repository.HostKeyRepository {
	if s.hostKeys == nil {
		return nil
	}
	return s.hostKeys
}

// Close releases the host key store. The logger belongs to the caller.
func (s *stack) Close() {
	if s.hostKeys != nil {
		if err := s.hostKeys.Close(); err != nil {
			s.log.WithError(err).Warn("Stack: failed to close host key store")
		}
	}
}
