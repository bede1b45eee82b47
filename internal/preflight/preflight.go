// Package preflight inspects the host neti runs on: which scan binaries are
// installed, whether raw sockets are available, and whether the process is
// containerized. The findings are advisory; scans still run and report their
// own errors.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Category groups findings
type Category string

const (
	CategoryPermissions Category = "permissions"
	CategoryCapability  Category = "capability"
	CategoryEnvironment Category = "environment"
)

// Finding is one observed fact about the host
type Finding struct {
	Category Category       `json:"category" yaml:"category"`
	Property string         `json:"property" yaml:"property"`
	Value    any            `json:"value" yaml:"value"`
	Method   string         `json:"method" yaml:"method"` // e.g. "exec.LookPath(nmap)"
	Raw      map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// WithRaw attaches extra data and returns the finding
func (f Finding) WithRaw(raw map[string]any) Finding {
	f.Raw = raw
	return f
}

// Report is the outcome of one preflight run
type Report struct {
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Findings  []Finding     `json:"findings" yaml:"findings"`
	Warnings  []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Bool returns a boolean finding, false when absent
func (r *Report) Bool(prop string) bool {
	for _, f := range r.Findings {
		if f.Property == prop {
			v, _ := f.Value.(bool)
			return v
		}
	}
	return false
}

// Binaries names the executables each scan family depends on
type Binaries struct {
	Ping       string
	Traceroute string
	Nslookup   string
	Nmap       string
}

func (b Binaries) withDefaults() Binaries {
	if b.Ping == "" {
		b.Ping = "ping"
	}
	if b.Traceroute == "" {
		b.Traceroute = "traceroute"
	}
	if b.Nslookup == "" {
		b.Nslookup = "nslookup"
	}
	if b.Nmap == "" {
		b.Nmap = "nmap"
	}
	return b
}

// privilegedScanTypes need raw sockets for nmap to run them as configured
var privilegedScanTypes = []string{"udp_scan", "intense_scan"}

// Checker runs the host probes. The function fields are swapped out in tests.
type Checker struct {
	binaries Binaries
	log      logrus.FieldLogger

	lookPath   func(file string) (string, error)
	version    func(ctx context.Context, path string) (string, error)
	rawSocket  func() (bool, string)
	euid       func() int
	fileExists func(path string) bool
	readFile   func(path string) string
}

// New creates a checker for the given binaries. Empty names resolve via $PATH.
func New(binaries Binaries, log logrus.FieldLogger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{
		binaries:   binaries.withDefaults(),
		log:        log.WithField("component", "preflight"),
		lookPath:   exec.LookPath,
		version:    nmapVersion,
		rawSocket:  probeRawSocket,
		euid:       os.Geteuid,
		fileExists: fileExists,
		readFile:   readFileSafe,
	}
}

// Run executes every probe and derives warnings from the findings
func (c *Checker) Run(ctx context.Context) *Report {
	start := time.Now()
	c.log.Debug("Preflight: probing host")

	var findings []Finding
	findings = append(findings, c.probeUser()...)
	findings = append(findings, c.probeRawSocket()...)
	findings = append(findings, c.probeBinaries(ctx)...)
	findings = append(findings, c.probeContainer()...)

	report := &Report{
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Findings:  findings,
	}
	report.Warnings = synthesize(report, c.binaries)

	c.log.WithFields(logrus.Fields{
		"findings": len(findings),
		"warnings": len(report.Warnings),
		"duration": report.Duration,
	}).Info("Preflight: complete")
	for _, w := range report.Warnings {
		c.log.Warnf("Preflight: %s", w)
	}
	return report
}

func (c *Checker) probeUser() []Finding {
	euid := c.euid()
	return []Finding{
		{Category: CategoryPermissions, Property: "effective_uid", Value: euid, Method: "os.Geteuid()"},
		{Category: CategoryPermissions, Property: "is_root", Value: euid == 0, Method: "os.Geteuid() == 0"},
	}
}

func (c *Checker) probeRawSocket() []Finding {
	ok, method := c.rawSocket()
	return []Finding{{Category: CategoryCapability, Property: "can_raw_socket", Value: ok, Method: method}}
}

func (c *Checker) probeBinaries(ctx context.Context) []Finding {
	names := map[string]string{
		"has_ping":       c.binaries.Ping,
		"has_traceroute": c.binaries.Traceroute,
		"has_nslookup":   c.binaries.Nslookup,
		"has_nmap":       c.binaries.Nmap,
	}
	props := make([]string, 0, len(names))
	for p := range names {
		props = append(props, p)
	}
	sort.Strings(props)

	var findings []Finding
	for _, prop := range props {
		bin := names[prop]
		path, err := c.lookPath(bin)
		if err != nil {
			findings = append(findings, Finding{
				Category: CategoryCapability,
				Property: prop,
				Value:    false,
				Method:   fmt.Sprintf("%s not in PATH", bin),
			})
			continue
		}

		f := Finding{
			Category: CategoryCapability,
			Property: prop,
			Value:    true,
			Method:   fmt.Sprintf("exec.LookPath(%s)", bin),
		}
		raw := map[string]any{"path": path}
		if prop == "has_nmap" {
			v, err := c.version(ctx, path)
			if err != nil {
				f.Value = false
				f.Method = "nmap exists but --version failed: " + err.Error()
			} else {
				raw["version"] = v
			}
		}
		findings = append(findings, f.WithRaw(raw))
	}
	return findings
}

func (c *Checker) probeContainer() []Finding {
	if c.fileExists("/.dockerenv") {
		return []Finding{{Category: CategoryEnvironment, Property: "container", Value: "docker", Method: "/.dockerenv exists"}}
	}

	cgroup := c.readFile("/proc/1/cgroup")
	markers := []struct{ runtime, marker string }{
		{"kubernetes", "kubepods"},
		{"docker", "/docker/"},
		{"podman", "libpod"},
		{"containerd", "containerd"},
		{"lxc", "/lxc/"},
	}
	for _, m := range markers {
		if strings.Contains(cgroup, m.marker) {
			return []Finding{{
				Category: CategoryEnvironment,
				Property: "container",
				Value:    m.runtime,
				Method:   fmt.Sprintf("/proc/1/cgroup contains %q", m.marker),
			}}
		}
	}
	return []Finding{{Category: CategoryEnvironment, Property: "container", Value: "none", Method: "no container markers"}}
}

func synthesize(r *Report, b Binaries) []string {
	var warnings []string

	if !r.Bool("has_nmap") {
		warnings = append(warnings, fmt.Sprintf("%s unavailable: every nmap scan type will fail", b.Nmap))
	} else if !r.Bool("can_raw_socket") && !r.Bool("is_root") {
		warnings = append(warnings, fmt.Sprintf(
			"no raw socket access: %s need root or CAP_NET_RAW",
			strings.Join(privilegedScanTypes, ", ")))
	}

	for _, probe := range []struct{ prop, bin, scan string }{
		{"has_ping", b.Ping, "ping"},
		{"has_traceroute", b.Traceroute, "traceroute"},
		{"has_nslookup", b.Nslookup, "nslookup"},
	} {
		if !r.Bool(probe.prop) {
			warnings = append(warnings, fmt.Sprintf("%s not found: %s requests will fail", probe.bin, probe.scan))
		}
	}
	return warnings
}

func nmapVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0]), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readFileSafe(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
