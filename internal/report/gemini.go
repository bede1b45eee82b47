package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"neti/internal/domain"
)

// Gemini defaults
const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel    = "gemini-pro-latest"
	DefaultTimeout  = 60 * time.Second
)

const maxResponseBytes = 8 << 20

// GeminiConfig configures the Gemini client
type GeminiConfig struct {
	Endpoint string
	Model    string
	// APIKeyEnv names the environment variable read when a request carries no key
	APIKeyEnv string
	Timeout   time.Duration
}

// GeminiAnalyzer calls the Gemini generateContent REST endpoint
type GeminiAnalyzer struct {
	config     GeminiConfig
	httpClient *http.Client
	getenv     func(string) string
	log        logrus.FieldLogger
}

// NewGeminiAnalyzer creates the analyzer, filling unset config with defaults
func NewGeminiAnalyzer(config GeminiConfig, log logrus.FieldLogger) *GeminiAnalyzer {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GeminiAnalyzer{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		getenv:     os.Getenv,
		log:        log.WithField("component", "report"),
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Analyze implements Analyzer
func (g *GeminiAnalyzer) Analyze(ctx context.Context, apiKey, results string) domain.AnalysisResult {
	if apiKey == "" && g.config.APIKeyEnv != "" {
		apiKey = g.getenv(g.config.APIKeyEnv)
	}
	if apiKey == "" {
		return domain.AnalysisError(MissingAPIKeyMessage)
	}
	if strings.TrimSpace(results) == "" {
		return domain.AnalysisError("Results are required")
	}

	start := time.Now()
	text, err := g.generate(ctx, apiKey, Prompt(results))
	entry := g.log.WithFields(logrus.Fields{
		"model":   g.config.Model,
		"elapsed": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Warn("Report: analysis failed")
		return domain.AnalysisError(err.Error())
	}

	entry.WithField("chars", len(text)).Info("Report: analysis complete")
	return domain.AnalysisCompleted(text)
}

func (g *GeminiAnalyzer) generate(ctx context.Context, apiKey, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent", strings.TrimSuffix(g.config.Endpoint, "/"), g.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	// the key never appears in the URL
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		var urlErr interface{ Timeout() bool }
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return "", fmt.Errorf("request timed out after %s", g.config.Timeout)
		}
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("%d %s: %s", apiErr.Error.Code, apiErr.Error.Status, apiErr.Error.Message)
		}
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("model returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("model returned no text (finish reason %s)", out.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}
