// Package remote implements gateway.Gateway over the Athar HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tiroq/athar/internal/diaglog"
	"github.com/tiroq/athar/internal/gateway"
	"github.com/tiroq/athar/internal/i18n"
)

// Config configures the gateway client.
type Config struct {
	BaseURL        string
	Token          string // optional auth token, sent as Bearer
	TimeoutSeconds int    // default 60
}

// Client is a gateway.Gateway backed by the remote HTTP API. Requests are
// never retried; a failed analysis is reported to the user instead.
type Client struct {
	cfg    Config
	client *http.Client

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient creates a new gateway client.
func NewClient(cfg Config) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

func (c *Client) log(entry diaglog.LogEntry) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentGateway
	}
	l.Log(entry)
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return "athar_remote"
}

type analyzeRequest struct {
	Image    string `json:"image"` // base64, no data URI header
	MIMEType string `json:"mime_type"`
}

type speechRequest struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
}

type speechResponse struct {
	Audio string `json:"audio"` // base64 PCM16
}

// Analyze submits an inscription photograph.
func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string) (*gateway.AnalysisResult, error) {
	start := time.Now()
	c.log(diaglog.LogEntry{
		Event:   diaglog.EventAnalyzeRequest,
		Payload: map[string]interface{}{"bytes": len(image), "mime_type": mimeType},
	})

	body, err := c.post(ctx, "/v1/analyze", analyzeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MIMEType: mimeType,
	})
	if err != nil {
		c.log(diaglog.LogEntry{Event: diaglog.EventAnalyzeFailed, Reason: err.Error()})
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var res gateway.AnalysisResult
	if err := json.Unmarshal(body, &res); err != nil {
		c.log(diaglog.LogEntry{Event: diaglog.EventAnalyzeFailed, Reason: "decode: " + err.Error()})
		return nil, fmt.Errorf("analyze: decode response: %w", err)
	}
	if err := res.Validate(); err != nil {
		c.log(diaglog.LogEntry{Event: diaglog.EventAnalyzeRejected, Reason: err.Error()})
		return nil, fmt.Errorf("analyze: %w", err)
	}

	c.log(diaglog.LogEntry{
		Event: diaglog.EventAnalyzeResult,
		Payload: map[string]interface{}{
			"detected_language": res.DetectedLanguage,
			"confidence":        res.Confidence,
			"latency_ms":        time.Since(start).Milliseconds(),
		},
	})
	return &res, nil
}

// Synthesize requests PCM16 speech for text. A 204 response or an empty
// audio field yields nil bytes and a nil error.
func (c *Client) Synthesize(ctx context.Context, text string, lang i18n.Language) ([]byte, error) {
	c.log(diaglog.LogEntry{
		Event:   diaglog.EventSpeechRequest,
		Payload: map[string]interface{}{"chars": len(text), "locale": string(lang)},
	})

	body, err := c.post(ctx, "/v1/speech", speechRequest{Text: text, Locale: string(lang)})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var parsed speechResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("speech: decode response: %w", err)
	}
	if parsed.Audio == "" {
		return nil, nil
	}
	pcm, err := base64.StdEncoding.DecodeString(parsed.Audio)
	if err != nil {
		return nil, fmt.Errorf("speech: decode audio: %w", err)
	}
	return pcm, nil
}

// post sends one JSON request and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &gateway.StatusError{Op: path, Status: resp.StatusCode, Body: truncate(body, 200)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

// HealthCheck queries the remote API health endpoint. Transport failures are
// reported in the status, not as an error.
func (c *Client) HealthCheck(ctx context.Context) (*gateway.HealthStatus, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	c.authorize(req)

	status := &gateway.HealthStatus{Backend: c.Name()}
	defer func() {
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventHealthCheck,
			Reason:  status.Message,
			Payload: map[string]interface{}{"ok": status.OK, "latency_ms": status.Latency.Milliseconds()},
		})
	}()

	resp, err := c.client.Do(req)
	status.Latency = time.Since(start)
	if err != nil {
		status.Message = fmt.Sprintf("health check failed: %v", err)
		return status, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status.Message = fmt.Sprintf("unhealthy: http %d: %s", resp.StatusCode, truncate(body, 200))
		return status, nil
	}

	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		status.Message = fmt.Sprintf("invalid health response: %v", err)
		return status, nil
	}

	status.OK = parsed.OK
	status.Message = "healthy"
	if !parsed.OK {
		status.Message = "service reports not ok"
	}
	return status, nil
}

// truncate returns the first n bytes of body as a string.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
