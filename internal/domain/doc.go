// Package domain defines the scan vocabulary shared by every neti component.
//
// # Requests
//
// ScanRequest names a target, the kind of target (network host, domain,
// device, email address) and the scan type to run against it. Device scans
// additionally carry a DeviceType and operator-supplied Credentials.
//
// # Envelopes
//
// Every adapter returns an Envelope. Process-backed adapters return Output,
// where exactly one of Stdout and Stderr is set. Session- and engine-backed
// adapters return status-shaped results (DeviceConfigResult,
// DomainScanResult, EmailAnalysisResult, AnalysisResult) whose Status is
// either "completed" or "error".
//
// The package has no infrastructure dependencies.
package domain
