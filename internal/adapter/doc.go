// Package adapter implements the scan backends behind neti.
//
// Each adapter serves one target kind and returns a domain.Envelope; errors
// from the underlying tool or session are classified with the sentinel
// errors in this package and folded into the envelope, never returned raw.
//
// # Adapters
//
// ProbeAdapter runs ping, traceroute and nslookup as child processes through
// a CommandRunner. Targets are validated as a single argument before any
// process is started.
//
// NmapAdapter maps scan types to fixed nmap argument profiles and renders the
// parsed XML report. A fresh PortScanEngine is built for every scan.
//
// SubdomainAdapter builds the passive sources for a profile and runs the
// subdomain engine, returning the sorted unique names found.
//
// DeviceAdapter opens an SSH session to a network device, runs the config
// export command for its DeviceType and returns the output. Host keys are
// checked by a HostKeyPolicy (insecure, trust on first use, known_hosts).
//
// EmailAdapter resolves the MX, SPF and DMARC records behind an address.
//
// # Dispatch
//
// Dispatcher routes a ScanRequest to the adapter for its kind. Registry
// records every adapter and the result of its preflight Check, which the
// HTTP API exposes through the scan type listing.
package adapter
