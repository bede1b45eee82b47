package domain

import "encoding/json"

// Envelope is implemented by every adapter result so callers can treat them uniformly
type Envelope interface {
	// Failed reports whether the failure branch is populated
	Failed() bool
	// ErrorMessage returns the failure text, or "" on success
	ErrorMessage() string
}

// Output is the envelope returned by process-backed adapters.
// Exactly one of Stdout and Stderr is non-nil.
type Output struct {
	Stdout *string `json:"stdout"`
	Stderr *string `json:"stderr"`
	// Note carries informational text that does not make the result a failure
	Note string `json:"note,omitempty"`
}

// Success builds a successful Output
func Success(stdout string) Output {
	return Output{Stdout: &stdout}
}

// SuccessWithNote builds a successful Output annotated with an informational note
func SuccessWithNote(stdout, note string) Output {
	return Output{Stdout: &stdout, Note: note}
}

// Failure builds a failed Output
func Failure(stderr string) Output {
	return Output{Stderr: &stderr}
}

// Failed implements Envelope
func (o Output) Failed() bool {
	return o.Stderr != nil
}

// ErrorMessage implements Envelope
func (o Output) ErrorMessage() string {
	if o.Stderr == nil {
		return ""
	}
	return *o.Stderr
}

// Text returns stdout, or "" for a failed Output
func (o Output) Text() string {
	if o.Stdout == nil {
		return ""
	}
	return *o.Stdout
}

// Status is the outcome marker of the status-shaped envelopes
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// DeviceConfigResult is returned by the remote device adapter
type DeviceConfigResult struct {
	Status     Status `json:"status"`
	ConfigData string `json:"config_data,omitempty"`
	Message    string `json:"message,omitempty"`
}

// DeviceConfigCompleted builds a successful device result
func DeviceConfigCompleted(config string) DeviceConfigResult {
	return DeviceConfigResult{Status: StatusCompleted, ConfigData: config}
}

// DeviceConfigError builds a failed device result
func DeviceConfigError(msg string) DeviceConfigResult {
	return DeviceConfigResult{Status: StatusError, Message: msg}
}

func (r DeviceConfigResult) Failed() bool         { return r.Status != StatusCompleted }
func (r DeviceConfigResult) ErrorMessage() string { return r.Message }

// MarshalJSON keeps config_data present on completed results even when the device printed nothing
func (r DeviceConfigResult) MarshalJSON() ([]byte, error) {
	if r.Status == StatusCompleted {
		return json.Marshal(struct {
			Status     Status `json:"status"`
			ConfigData string `json:"config_data"`
		}{r.Status, r.ConfigData})
	}
	return json.Marshal(struct {
		Status  Status `json:"status"`
		Message string `json:"message"`
	}{r.Status, r.Message})
}

// DomainScanResult is returned by the subdomain enumeration adapter
type DomainScanResult struct {
	Status  Status   `json:"status"`
	Results []string `json:"results,omitempty"`
	Message string   `json:"message,omitempty"`
}

// DomainScanCompleted builds a successful domain result; results is never nil
func DomainScanCompleted(results []string) DomainScanResult {
	if results == nil {
		results = []string{}
	}
	return DomainScanResult{Status: StatusCompleted, Results: results}
}

// DomainScanError builds a failed domain result
func DomainScanError(msg string) DomainScanResult {
	return DomainScanResult{Status: StatusError, Message: msg}
}

func (r DomainScanResult) Failed() bool         { return r.Status != StatusCompleted }
func (r DomainScanResult) ErrorMessage() string { return r.Message }

// MarshalJSON keeps an empty result list visible on completed scans
func (r DomainScanResult) MarshalJSON() ([]byte, error) {
	if r.Status == StatusCompleted {
		results := r.Results
		if results == nil {
			results = []string{}
		}
		return json.Marshal(struct {
			Status  Status   `json:"status"`
			Results []string `json:"results"`
		}{r.Status, results})
	}
	return json.Marshal(struct {
		Status  Status `json:"status"`
		Message string `json:"message"`
	}{r.Status, r.Message})
}

// EmailAnalysisResult is returned by the email analysis adapter
type EmailAnalysisResult struct {
	Status  Status   `json:"status"`
	Results []string `json:"results,omitempty"`
	Message string   `json:"message,omitempty"`
}

// EmailAnalysisCompleted builds a successful email result
func EmailAnalysisCompleted(results []string) EmailAnalysisResult {
	if results == nil {
		results = []string{}
	}
	return EmailAnalysisResult{Status: StatusCompleted, Results: results}
}

// EmailAnalysisError builds a failed email result
func EmailAnalysisError(msg string) EmailAnalysisResult {
	return EmailAnalysisResult{Status: StatusError, Message: msg}
}

func (r EmailAnalysisResult) Failed() bool         { return r.Status != StatusCompleted }
func (r EmailAnalysisResult) ErrorMessage() string { return r.Message }

// AnalysisResult is returned by the report generator
type AnalysisResult struct {
	Status   Status `json:"status"`
	Analysis string `json:"analysis,omitempty"`
	Message  string `json:"message,omitempty"`
}

// AnalysisCompleted builds a successful analysis result
func AnalysisCompleted(text string) AnalysisResult {
	return AnalysisResult{Status: StatusCompleted, Analysis: text}
}

// AnalysisError builds a failed analysis result
func AnalysisError(msg string) AnalysisResult {
	return AnalysisResult{Status: StatusError, Message: msg}
}

func (r AnalysisResult) Failed() bool         { return r.Status != StatusCompleted }
func (r AnalysisResult) ErrorMessage() string { return r.Message }
