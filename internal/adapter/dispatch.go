package adapter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"neti/internal/domain"
)

const (
	missingFieldsMessage      = "Missing required fields."
	unsupportedDeviceScanType = "Unsupported scan type for device."
	unsupportedEmailScanType  = "Unsupported scan type for email."
)

// Dispatcher routes a scan request to the adapter for its kind
type Dispatcher struct {
	Probes    *ProbeAdapter
	PortScan  *NmapAdapter
	Subdomain *SubdomainAdapter
	Device    *DeviceAdapter
	Email     *EmailAdapter

	log logrus.FieldLogger
}

// NewDispatcher wires the adapters together
func NewDispatcher(probes *ProbeAdapter, portScan *NmapAdapter, sub *SubdomainAdapter, device *DeviceAdapter, email *EmailAdapter, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		Probes:    probes,
		PortScan:  portScan,
		Subdomain: sub,
		Device:    device,
		Email:     email,
		log:       log.WithField("component", "dispatch"),
	}
}

// Adapters lists the wired adapters for registration
func (d *Dispatcher) Adapters() []Adapter {
	var out []Adapter
	if d.Probes != nil {
		out = append(out, d.Probes)
	}
	if d.PortScan != nil {
		out = append(out, d.PortScan)
	}
	if d.Subdomain != nil {
		out = append(out, d.Subdomain)
	}
	if d.Device != nil {
		out = append(out, d.Device)
	}
	if d.Email != nil {
		out = append(out, d.Email)
	}
	return out
}

// Dispatch runs req on the matching adapter. It never panics and never
// returns nil; every failure is folded into an envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.ScanRequest) (env domain.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"kind":      req.Kind,
				"scan_type": req.ScanType,
				"panic":     r,
			}).Error("Dispatch: adapter panicked")
			env = domain.Failure(fmt.Sprintf("An unexpected error occurred: %v", r))
		}
	}()

	switch req.Kind {
	case domain.TargetKindNetwork:
		if req.ScanType.IsProbe() {
			return d.Probes.Probe(ctx, req.ScanType, req.Target)
		}
		return d.PortScan.PortScan(ctx, req.Target, req.ScanType)

	case domain.TargetKindDomain:
		return d.Subdomain.Enumerate(ctx, req.Target, req.ScanType)

	case domain.TargetKindDevice:
		if req.ScanType != domain.ScanTypeDeviceConfig {
			return domain.DeviceConfigError(unsupportedDeviceScanType)
		}
		if req.Credentials == nil || req.Target == "" || req.DeviceType == "" ||
			req.Credentials.Username == "" || req.Credentials.Password == "" {
			return domain.DeviceConfigError(missingFieldsMessage)
		}
		return d.Device.FetchConfig(ctx, req.DeviceType, req.Target, req.Credentials.Username, req.Credentials.Password)

	case domain.TargetKindEmail:
		if req.ScanType != domain.ScanTypeEmailAnalysis {
			return domain.EmailAnalysisError(unsupportedEmailScanType)
		}
		return d.Email.Analyze(ctx, req.Target)

	default:
		return domain.Failure(fmt.Sprintf("Unsupported target kind: %s", req.Kind))
	}
}
