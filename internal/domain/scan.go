package domain

import "fmt"

// TargetKind identifies what sort of target a scan is aimed at
type TargetKind string

const (
	// TargetKindNetwork is a host or IP probed with command-line tools or nmap
	TargetKindNetwork TargetKind = "network"
	// TargetKindDomain is a registrable domain used for subdomain enumeration
	TargetKindDomain TargetKind = "domain"
	// TargetKindDevice is a network appliance reached over SSH
	TargetKindDevice TargetKind = "device"
	// TargetKindEmail is a mailbox address whose domain is inspected
	TargetKindEmail TargetKind = "email"
)

// Valid reports whether k is one of the known target kinds
func (k TargetKind) Valid() bool {
	switch k {
	case TargetKindNetwork, TargetKindDomain, TargetKindDevice, TargetKindEmail:
		return true
	default:
		return false
	}
}

// ScanType names a single scan operation
type ScanType string

const (
	ScanTypePing       ScanType = "ping"
	ScanTypeTraceroute ScanType = "traceroute"
	ScanTypeNslookup   ScanType = "nslookup"

	// nmap argument profiles
	ScanTypePingScan    ScanType = "ping_scan"
	ScanTypeQuickScan   ScanType = "quick_scan"
	ScanTypeIntenseScan ScanType = "intense_scan"
	ScanTypeUDPScan     ScanType = "udp_scan"
	ScanTypeVulnScan    ScanType = "vuln_scan"

	ScanTypeSubdomainEnum ScanType = "subdomain_enum"
	ScanTypeDeviceConfig  ScanType = "device_config"
	ScanTypeEmailAnalysis ScanType = "email_analysis"
)

// Valid reports whether s is one of the known scan types
func (s ScanType) Valid() bool {
	switch s {
	case ScanTypePing, ScanTypeTraceroute, ScanTypeNslookup,
		ScanTypePingScan, ScanTypeQuickScan, ScanTypeIntenseScan, ScanTypeUDPScan, ScanTypeVulnScan,
		ScanTypeSubdomainEnum, ScanTypeDeviceConfig, ScanTypeEmailAnalysis:
		return true
	default:
		return false
	}
}

// IsProbe reports whether the scan type is a single-shot command-line probe
func (s ScanType) IsProbe() bool {
	switch s {
	case ScanTypePing, ScanTypeTraceroute, ScanTypeNslookup:
		return true
	default:
		return false
	}
}

// DeviceType selects the vendor dialect used to read a device configuration
type DeviceType string

const (
	DeviceTypeMikrotik DeviceType = "mikrotik"
	DeviceTypeCiscoIOS DeviceType = "cisco_ios"
)

// ConfigCommand returns the command that dumps the running configuration.
// ok is false for device types that are not supported.
func (d DeviceType) ConfigCommand() (cmd string, ok bool) {
	switch d {
	case DeviceTypeMikrotik:
		return "/export", true
	case DeviceTypeCiscoIOS:
		return "show running-config", true
	default:
		return "", false
	}
}

// SupportedDeviceTypes lists every device type with a known config command
func SupportedDeviceTypes() []DeviceType {
	return []DeviceType{DeviceTypeMikrotik, DeviceTypeCiscoIOS}
}

// Credentials are plaintext login details supplied by the operator for one call
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String hides the password so credentials can be logged safely
func (c Credentials) String() string {
	return fmt.Sprintf("%s:***", c.Username)
}

// ScanRequest is a single operator-initiated scan
type ScanRequest struct {
	Target      string       `json:"target"`
	Kind        TargetKind   `json:"kind"`
	ScanType    ScanType     `json:"scan_type"`
	Credentials *Credentials `json:"credentials,omitempty"`
	DeviceType  DeviceType   `json:"device_type,omitempty"`
}
