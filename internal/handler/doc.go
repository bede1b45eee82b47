// Package handler implements the neti HTTP API on gin.
//
// # Routes
//
// The per-kind routes accept the JSON bodies the browser front end sends:
//
//	POST /run_ping, /run_traceroute, /run_nslookup   {target}
//	POST /run_nmap                                   {target, scan_type}
//	POST /run_domain_scan                            {target_domain, scan_type}
//	POST /network_device_target                      {device_type, host, username, password, api_key?}
//	POST /email_target                               {target_email}
//	POST /analyze_results                            {api_key, results}
//
// POST /api/scan takes a full scan request for any target kind and returns
// the result envelope with its scan ID. GET /api/scan-types lists adapters
// and the scan types they accept.
//
// # Response Format
//
// Process-backed scans answer {"result": stdout} or {"error": stderr} with
// status 200; an adapter failure is a scan outcome, not an HTTP error.
// Missing required fields answer 400. Panics are recovered into a 500 with
// {"error": ...}. When a request rate is configured the POST routes are
// throttled per client IP and answer 429 with a Retry-After header.
//
// # Server-Sent Events
//
// GET /api/events streams scan start and finish events. Prometheus metrics
// are served at /metrics when enabled.
package handler
