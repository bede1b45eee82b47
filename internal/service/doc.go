// Package service coordinates scans between the front ends (HTTP handlers and
// the CLI) and the adapter layer.
//
// # Services
//
// ScanService wraps the adapter dispatcher: it assigns each scan an ID, logs
// the start and outcome, records Prometheus metrics and publishes events. It
// also fronts the report analyzer so analysis requests are counted the same way.
//
// # Event System
//
// Scans publish events via EventBus. The hub package relays them to
// connected clients as Server-Sent Events. Events never carry credentials
// or scan output.
package service
