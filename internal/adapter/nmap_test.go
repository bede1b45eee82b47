package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neti/internal/domain"
)

// fakeEngine returns a canned nmap result and records what it was asked to scan
type fakeEngine struct {
	result   *nmap.Run
	warnings []string
	err      error
	block    bool

	target string
	args   []string
}

func (f *fakeEngine) Scan(ctx context.Context, target string, args []string) (*nmap.Run, []string, error) {
	f.target = target
	f.args = args
	if f.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return f.result, f.warnings, f.err
}

// countingFactory hands out the same fake engine and counts constructions
func countingFactory(engine *fakeEngine, count *int) EngineFactory {
	return func() PortScanEngine {
		*count++
		return engine
	}
}

func sampleRun() *nmap.Run {
	return &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{
					{Addr: "AA:BB:CC:DD:EE:FF", AddrType: "mac", Vendor: "Test Vendor"},
					{Addr: "192.168.1.100", AddrType: "ipv4"},
				},
				Hostnames: []nmap.Hostname{
					{Name: "testhost.local", Type: "PTR"},
				},
				Status: nmap.Status{State: "up"},
				Ports: []nmap.Port{
					{
						ID:       443,
						Protocol: "tcp",
						State:    nmap.State{State: "closed", Reason: "reset"},
					},
					{
						ID:       22,
						Protocol: "tcp",
						State:    nmap.State{State: "open", Reason: "syn-ack"},
						Service: nmap.Service{
							Name:    "ssh",
							Product: "OpenSSH",
							Version: "8.9p1",
						},
					},
					{
						ID:       53,
						Protocol: "udp",
						State:    nmap.State{State: "open"},
						Service:  nmap.Service{Name: "domain", ExtraInfo: "unbound"},
					},
					{
						ID:       80,
						Protocol: "tcp",
						State:    nmap.State{State: "open"},
						Service: nmap.Service{
							Name:    "http",
							Product: "nginx",
							Version: "1.18.0",
						},
						Scripts: []nmap.Script{
							{ID: "http-title", Output: "Welcome"},
							{ID: "vulners", Output: "CVE-2021-23017 7.7"},
						},
					},
				},
			},
		},
	}
}

// TestNmapAdapter_Interface tests the adapter descriptors
func TestNmapAdapter_Interface(t *testing.T) {
	adapter := NewNmapAdapter()

	assert.Equal(t, "nmap", adapter.Name())
	assert.Equal(t, domain.TargetKindNetwork, adapter.Kind())
	assert.Len(t, adapter.ScanTypes(), len(scanProfiles))
	for _, st := range adapter.ScanTypes() {
		_, ok := ScanProfile(st)
		assert.True(t, ok, "scan type %s has no profile", st)
	}
}

// TestNmapAdapter_Options tests option functions
func TestNmapAdapter_Options(t *testing.T) {
	t.Run("WithTimeout", func(t *testing.T) {
		adapter := NewNmapAdapter(WithTimeout(20 * time.Minute))
		assert.Equal(t, 20*time.Minute, adapter.timeout)
	})

	t.Run("WithTimeout ignores zero", func(t *testing.T) {
		adapter := NewNmapAdapter(WithTimeout(0))
		assert.Equal(t, DefaultNmapTimeout, adapter.timeout)
	})

	t.Run("WithBinaryPath", func(t *testing.T) {
		adapter := NewNmapAdapter(WithBinaryPath("/opt/nmap/bin/nmap"))
		engine, ok := adapter.newEngine().(*NmapEngine)
		require.True(t, ok, "expected *NmapEngine, got %T", adapter.newEngine())
		assert.Equal(t, "/opt/nmap/bin/nmap", engine.BinaryPath)
	})
}

// TestNmapAdapter_Profiles tests that each scan type reaches the engine with its arguments
func TestNmapAdapter_Profiles(t *testing.T) {
	tests := []struct {
		scanType domain.ScanType
		wantArgs []string
	}{
		{domain.ScanTypePingScan, []string{"-sn"}},
		{domain.ScanTypeQuickScan, []string{"-T4", "-F"}},
		{domain.ScanTypeIntenseScan, []string{"-T4", "-A", "-v"}},
		{domain.ScanTypeUDPScan, []string{"-sU"}},
		{domain.ScanTypeVulnScan, []string{"--script", "vuln"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.scanType), func(t *testing.T) {
			engine := &fakeEngine{result: sampleRun()}
			adapter := NewNmapAdapter(WithEngineFactory(func() PortScanEngine { return engine }))

			out := adapter.PortScan(context.Background(), "192.168.1.100", tt.scanType)
			require.False(t, out.Failed(), out.ErrorMessage())
			assert.Equal(t, "192.168.1.100", engine.target)
			assert.Equal(t, tt.wantArgs, engine.args)
		})
	}
}

// TestNmapAdapter_InvalidScanType tests that unknown profiles never build an engine
func TestNmapAdapter_InvalidScanType(t *testing.T) {
	count := 0
	adapter := NewNmapAdapter(WithEngineFactory(countingFactory(&fakeEngine{}, &count)))

	out := adapter.PortScan(context.Background(), "10.0.0.1", "stealth_scan")

	assert.Equal(t, "Invalid scan type: stealth_scan", out.ErrorMessage())
	assert.Nil(t, out.Stdout)
	assert.Zero(t, count)
}

// TestNmapAdapter_FreshEnginePerCall tests that engines are never reused
func TestNmapAdapter_FreshEnginePerCall(t *testing.T) {
	count := 0
	adapter := NewNmapAdapter(WithEngineFactory(countingFactory(&fakeEngine{result: sampleRun()}, &count)))

	adapter.PortScan(context.Background(), "10.0.0.1", domain.ScanTypeQuickScan)
	adapter.PortScan(context.Background(), "10.0.0.2", domain.ScanTypeQuickScan)

	assert.Equal(t, 2, count)
}

// TestNmapAdapter_RejectsUnsafeTarget tests option injection through the target
func TestNmapAdapter_RejectsUnsafeTarget(t *testing.T) {
	count := 0
	adapter := NewNmapAdapter(WithEngineFactory(countingFactory(&fakeEngine{}, &count)))

	out := adapter.PortScan(context.Background(), "--script=/tmp/evil.nse", domain.ScanTypeQuickScan)

	require.True(t, out.Failed())
	assert.True(t, strings.HasPrefix(out.ErrorMessage(), "Invalid target:"), out.ErrorMessage())
	assert.Zero(t, count)
}

// TestFormatReport tests report layout and port ordering
func TestFormatReport(t *testing.T) {
	want := strings.Join([]string{
		hostSeparator,
		"Host : 192.168.1.100 (testhost.local)",
		"State : up",
		"----------",
		"Protocol : tcp",
		"port : 22\tstate : open\tname : ssh\tproduct : OpenSSH 8.9p1 ",
		"port : 80\tstate : open\tname : http\tproduct : nginx 1.18.0 ",
		"Script output:",
		"  http-title:",
		"Welcome",
		"  vulners:",
		"CVE-2021-23017 7.7",
		"port : 443\tstate : closed\tname : \tproduct :   ",
		"----------",
		"Protocol : udp",
		"port : 53\tstate : open\tname : domain\tproduct :   unbound",
		"",
	}, "\n")

	assert.Equal(t, want, FormatReport(sampleRun()))
}

// TestNmapAdapter_Report tests that a populated result comes back as the text report
func TestNmapAdapter_Report(t *testing.T) {
	engine := &fakeEngine{result: sampleRun(), warnings: []string{"RTTVAR has grown"}}
	adapter := NewNmapAdapter(WithEngineFactory(func() PortScanEngine { return engine }))

	out := adapter.PortScan(context.Background(), "192.168.1.100", domain.ScanTypeVulnScan)

	require.False(t, out.Failed(), out.ErrorMessage())
	assert.Empty(t, out.Note)
	assert.Contains(t, out.Text(), "Host : 192.168.1.100 (testhost.local)")
}

// TestNmapAdapter_NoHosts tests the raw summary fallback
func TestNmapAdapter_NoHosts(t *testing.T) {
	engine := &fakeEngine{result: &nmap.Run{}}
	adapter := NewNmapAdapter(WithEngineFactory(func() PortScanEngine { return engine }))

	out := adapter.PortScan(context.Background(), "10.255.255.1", domain.ScanTypePingScan)

	require.False(t, out.Failed(), out.ErrorMessage())
	assert.Nil(t, out.Stderr)
	assert.Equal(t, "host;hostname;hostname_type;protocol;port;name;state;product;extrainfo;reason;version\n", out.Text())
	assert.Equal(t, noFindingsNote, out.Note)
}

// TestCSVSummary tests one row per port with the host's address
func TestCSVSummary(t *testing.T) {
	summary, err := CSVSummary(sampleRun())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(summary), "\n")
	require.Len(t, lines, 5, summary)
	assert.Equal(t, "192.168.1.100;testhost.local;PTR;tcp;22;ssh;open;OpenSSH;;syn-ack;8.9p1", lines[1])
	assert.True(t, strings.HasPrefix(lines[4], "192.168.1.100;testhost.local;PTR;udp;53;domain;open;;unbound;"), lines[4])
}

// TestNmapAdapter_Errors tests error classification
func TestNmapAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "not installed",
			err:     fmt.Errorf("create scanner: %w", nmap.ErrNmapNotInstalled),
			wantMsg: fmt.Sprintf("Nmap error: create scanner: %v. Is Nmap installed on the system?", nmap.ErrNmapNotInstalled),
		},
		{
			name:    "engine timeout",
			err:     nmap.ErrScanTimeout,
			wantMsg: "Nmap error: scan timed out after 10m0s",
		},
		{
			name:    "anything else",
			err:     errors.New("unable to parse nmap output"),
			wantMsg: "An unexpected error occurred: unable to parse nmap output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{err: tt.err}
			adapter := NewNmapAdapter(WithEngineFactory(func() PortScanEngine { return engine }))

			out := adapter.PortScan(context.Background(), "10.0.0.1", domain.ScanTypeQuickScan)
			assert.Equal(t, tt.wantMsg, out.ErrorMessage())
		})
	}
}

// TestNmapAdapter_OuterTimeout tests that a hung engine is cut off
func TestNmapAdapter_OuterTimeout(t *testing.T) {
	engine := &fakeEngine{block: true}
	adapter := NewNmapAdapter(
		WithTimeout(50*time.Millisecond),
		WithEngineFactory(func() PortScanEngine { return engine }),
	)

	start := time.Now()
	out := adapter.PortScan(context.Background(), "10.0.0.1", domain.ScanTypeIntenseScan)

	assert.Equal(t, "Nmap error: scan timed out after 50ms", out.ErrorMessage())
	assert.Less(t, time.Since(start), 2*time.Second)
}

// TestNmapAdapter_CallerCanceled tests that a caller going away is not reported as a timeout
func TestNmapAdapter_CallerCanceled(t *testing.T) {
	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		// nmap reports every finished context as a scan timeout
		engine := &fakeEngine{err: nmap.ErrScanTimeout}
		adapter := NewNmapAdapter(WithEngineFactory(func() PortScanEngine { return engine }))

		out := adapter.PortScan(ctx, "10.0.0.1", domain.ScanTypeQuickScan)
		assert.Equal(t, "Nmap error: scan canceled before completion (context canceled)", out.ErrorMessage())
	})

	t.Run("caller deadline shorter than scan timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		engine := &fakeEngine{block: true}
		adapter := NewNmapAdapter(WithEngineFactory(func() PortScanEngine { return engine }))

		out := adapter.PortScan(ctx, "10.0.0.1", domain.ScanTypeQuickScan)
		assert.Equal(t, "Nmap error: scan canceled before completion (context deadline exceeded)", out.ErrorMessage())
	})
}

// TestHostAddress tests address preference
func TestHostAddress(t *testing.T) {
	tests := []struct {
		name  string
		addrs []nmap.Address
		want  string
	}{
		{"ipv4 wins", []nmap.Address{{Addr: "::1", AddrType: "ipv6"}, {Addr: "127.0.0.1", AddrType: "ipv4"}}, "127.0.0.1"},
		{"ipv6 over mac", []nmap.Address{{Addr: "AA:BB", AddrType: "mac"}, {Addr: "::1", AddrType: "ipv6"}}, "::1"},
		{"fallback to first", []nmap.Address{{Addr: "AA:BB", AddrType: "mac"}}, "AA:BB"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hostAddress(nmap.Host{Addresses: tt.addrs}))
		})
	}
}

// TestHostName tests hostname preference
func TestHostName(t *testing.T) {
	host := nmap.Host{Hostnames: []nmap.Hostname{
		{Name: "ptr.example.net", Type: "PTR"},
		{Name: "router.lan", Type: "user"},
	}}
	assert.Equal(t, "router.lan", hostName(host))
	assert.Empty(t, hostName(nmap.Host{}))
}
