package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"neti/internal/domain"
	"neti/internal/metrics"
	"neti/internal/report"
)

const noAnalysisNote = "AI analysis unavailable: no API key was provided."

// Dispatcher runs one scan request; adapter.Dispatcher satisfies it
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.ScanRequest) domain.Envelope
}

// ScanService runs scans on behalf of the HTTP and CLI front ends. It adds
// scan IDs, logging, metrics and events around the dispatcher.
type ScanService struct {
	dispatcher Dispatcher
	analyzer   report.Analyzer
	metrics    *metrics.Metrics
	events     *EventBus
	log        logrus.FieldLogger
}

// NewScanService creates the service. metrics and events may be nil.
func NewScanService(d Dispatcher, analyzer report.Analyzer, m *metrics.Metrics, events *EventBus, log logrus.FieldLogger) *ScanService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ScanService{
		dispatcher: d,
		analyzer:   analyzer,
		metrics:    m,
		events:     events,
		log:        log.WithField("component", "scan"),
	}
}

// ScanOutcome is the result of one scan plus its bookkeeping
type ScanOutcome struct {
	ID      string
	Result  domain.Envelope
	Elapsed time.Duration
}

// Scan dispatches req and records it
func (s *ScanService) Scan(ctx context.Context, req domain.ScanRequest) ScanOutcome {
	id := uuid.NewString()
	entry := s.log.WithFields(logrus.Fields{
		"scan_id":   id,
		"kind":      req.Kind,
		"scan_type": req.ScanType,
		"target":    req.Target,
	})
	if req.Credentials != nil {
		entry = entry.WithField("username", req.Credentials.Username)
	}

	event := ScanEvent{ScanID: id, Kind: req.Kind, ScanType: req.ScanType, Target: req.Target}
	s.events.Publish(Event{Type: EventScanStarted, Payload: event})
	entry.Info("Scan: started")

	done := s.metrics.ScanStarted(string(req.Kind), string(req.ScanType))
	start := time.Now()
	result := s.dispatcher.Dispatch(ctx, req)
	elapsed := time.Since(start)
	failed := result == nil || result.Failed()
	done(failed)

	if result == nil {
		result = domain.Failure("An unexpected error occurred: no result")
	}

	entry = entry.WithField("elapsed", elapsed.Round(time.Millisecond))
	if failed {
		entry.WithField("error", result.ErrorMessage()).Warn("Scan: failed")
	} else {
		entry.Info("Scan: completed")
	}

	event.Failed = failed
	event.ElapsedMS = elapsed.Milliseconds()
	s.events.Publish(Event{Type: EventScanFinished, Payload: event})

	return ScanOutcome{ID: id, Result: result, Elapsed: elapsed}
}

// Analyze asks the report analyzer for a written report on results
func (s *ScanService) Analyze(ctx context.Context, apiKey, results string) domain.AnalysisResult {
	if s.analyzer == nil {
		return domain.AnalysisError("report generation is not configured")
	}
	res := s.analyzer.Analyze(ctx, apiKey, results)
	s.metrics.AnalysisDone(res.Failed())
	s.events.Publish(Event{Type: EventAnalysisDone, Payload: map[string]bool{"failed": res.Failed()}})
	return res
}

// DeviceAnalysis returns the report for a retrieved device configuration,
// or a note explaining why none was produced. Only completed results are analyzed.
func (s *ScanService) DeviceAnalysis(ctx context.Context, apiKey string, res domain.DeviceConfigResult) string {
	if res.Failed() {
		return ""
	}
	analysis := s.Analyze(ctx, apiKey, res.ConfigData)
	if analysis.Failed() {
		if analysis.Message == report.MissingAPIKeyMessage {
			return noAnalysisNote
		}
		return fmt.Sprintf("AI analysis failed: %s", analysis.Message)
	}
	return analysis.Analysis
}
