package service

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neti/internal/domain"
	"neti/internal/metrics"
	"neti/internal/report"
)

type stubDispatcher struct {
	result domain.Envelope
	got    []domain.ScanRequest
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req domain.ScanRequest) domain.Envelope {
	s.got = append(s.got, req)
	return s.result
}

type stubAnalyzer struct {
	result  domain.AnalysisResult
	apiKey  string
	results string
}

func (s *stubAnalyzer) Analyze(ctx context.Context, apiKey, results string) domain.AnalysisResult {
	s.apiKey, s.results = apiKey, results
	return s.result
}

func newTestService(t *testing.T, d Dispatcher, a report.Analyzer) (*ScanService, *metrics.Metrics, chan Event) {
	t.Helper()
	m, err := metrics.New()
	require.NoError(t, err)
	bus := NewEventBus()
	events := make(chan Event, 16)
	bus.Subscribe(events)
	return NewScanService(d, a, m, bus, nil), m, events
}

func TestScanService_Scan(t *testing.T) {
	d := &stubDispatcher{result: domain.Success("64 bytes from 10.0.0.1")}
	svc, _, events := newTestService(t, d, nil)

	req := domain.ScanRequest{Kind: domain.TargetKindNetwork, ScanType: domain.ScanTypePing, Target: "10.0.0.1"}
	out := svc.Scan(context.Background(), req)

	_, err := uuid.Parse(out.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.Success("64 bytes from 10.0.0.1"), out.Result)
	assert.Equal(t, []domain.ScanRequest{req}, d.got)

	started := <-events
	finished := <-events
	assert.Equal(t, EventScanStarted, started.Type)
	assert.Equal(t, EventScanFinished, finished.Type)
	payload := finished.Payload.(ScanEvent)
	assert.Equal(t, out.ID, payload.ScanID)
	assert.False(t, payload.Failed)
}

func TestScanService_ScanFailureCounted(t *testing.T) {
	d := &stubDispatcher{result: domain.Failure("Invalid scan type: x")}
	svc, m, events := newTestService(t, d, nil)

	out := svc.Scan(context.Background(), domain.ScanRequest{Kind: domain.TargetKindNetwork, ScanType: "x", Target: "h"})
	assert.True(t, out.Result.Failed())

	<-events
	finished := <-events
	assert.True(t, finished.Payload.(ScanEvent).Failed)

	body := scrape(t, m)
	assert.Contains(t, body, `neti_scans_total{kind="network",outcome="failure",scan_type="unknown"} 1`)
}

func TestScanService_NilResult(t *testing.T) {
	svc, _, _ := newTestService(t, &stubDispatcher{}, nil)

	out := svc.Scan(context.Background(), domain.ScanRequest{Kind: domain.TargetKindEmail, Target: "a@b.c"})
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Failed())
}

func TestScanService_UniqueIDs(t *testing.T) {
	svc := NewScanService(&stubDispatcher{result: domain.Success("")}, nil, nil, nil, nil)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := svc.Scan(context.Background(), domain.ScanRequest{}).ID
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestScanService_Analyze(t *testing.T) {
	a := &stubAnalyzer{result: domain.AnalysisCompleted("## Report")}
	svc, m, _ := newTestService(t, &stubDispatcher{}, a)

	res := svc.Analyze(context.Background(), "key", "raw")
	assert.Equal(t, "## Report", res.Analysis)
	assert.Equal(t, "key", a.apiKey)
	assert.Equal(t, "raw", a.results)
	assert.Contains(t, scrape(t, m), `neti_analyses_total{outcome="success"} 1`)

	unconfigured := NewScanService(&stubDispatcher{}, nil, nil, nil, nil)
	assert.Equal(t, "report generation is not configured", unconfigured.Analyze(context.Background(), "k", "r").Message)
}

func TestScanService_DeviceAnalysis(t *testing.T) {
	ctx := context.Background()
	completed := domain.DeviceConfigCompleted("/ip address\nadd address=10.0.0.1/24")

	a := &stubAnalyzer{result: domain.AnalysisCompleted("looks fine")}
	svc, _, _ := newTestService(t, &stubDispatcher{}, a)
	assert.Equal(t, "looks fine", svc.DeviceAnalysis(ctx, "key", completed))
	assert.Equal(t, "/ip address\nadd address=10.0.0.1/24", a.results)

	a.result = domain.AnalysisError(report.MissingAPIKeyMessage)
	assert.Equal(t, "AI analysis unavailable: no API key was provided.", svc.DeviceAnalysis(ctx, "", completed))

	a.result = domain.AnalysisError("429 RESOURCE_EXHAUSTED: quota")
	assert.Equal(t, "AI analysis failed: 429 RESOURCE_EXHAUSTED: quota", svc.DeviceAnalysis(ctx, "key", completed))

	a.results = ""
	assert.Empty(t, svc.DeviceAnalysis(ctx, "key", domain.DeviceConfigError("nope")))
	assert.Empty(t, a.results, "failed retrievals are not analyzed")
}

func TestEventBus_SlowSubscriberSkipped(t *testing.T) {
	bus := NewEventBus()
	slow := make(chan Event)
	fast := make(chan Event, 1)
	bus.Subscribe(slow)
	bus.Subscribe(fast)

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: EventScanStarted})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	ev := <-fast
	assert.False(t, ev.Time.IsZero())

	bus.Unsubscribe(fast)
	bus.Publish(Event{Type: EventScanFinished})
	assert.Empty(t, fast)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}
