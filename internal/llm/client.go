// Package llm is a structured completion client for OpenAI-compatible
// chat completion endpoints. It adds client-side rate limiting, retries
// with exponential backoff for transient failures, and strict JSON schema
// response formats.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://api.openai.com"
	defaultModel       = "gpt-5.2"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultRateLimit   = 5.0
	defaultBurst       = 10
	defaultBaseBackoff = time.Second
)

// ReasoningEffort hints how much deliberation a call deserves.
type ReasoningEffort string

// Reasoning effort levels.
const (
	EffortNone   ReasoningEffort = "none"
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
	EffortXHigh  ReasoningEffort = "xhigh"
)

// Request is one completion call.
type Request struct {
	Prompt string
	Effort ReasoningEffort
	// Schema constrains the response to JSON matching it. Nil means free text.
	Schema     *jsonschema.Schema
	SchemaName string
	// Caller and TurnID only label log lines.
	Caller string
	TurnID string
}

// Result is a completion. Parsed holds the response body when it is valid
// JSON and a schema was requested.
type Result struct {
	Text     string
	Parsed   json.RawMessage
	Model    string
	Attempts int
}

// Completer is the contract the specialists and the orchestrator consume.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (*Result, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Config configures a Client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	RateLimit   float64
	RateBurst   int
	BaseBackoff time.Duration
	HTTPClient  *http.Client
}

// Client implements Completer against /v1/chat/completions.
type Client struct {
	model       string
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// NewClient creates a client, filling unset fields with defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultBurst
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		model:       model,
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries:  retries,
		baseBackoff: backoff,
		logger:      logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends req, retrying rate limits, timeouts and 5xx responses.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	body := c.buildRequest(req)

	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-2))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, c.fail(req, attempt-1, lastStatus, classifyContextErr(ctx.Err()), start)
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(req, attempt-1, lastStatus, fmt.Errorf("rate limiter: %w", classifyContextErr(err)), start)
		}

		text, err := c.doRequest(ctx, body)
		if err == nil {
			res := &Result{Text: text, Model: c.model, Attempts: attempt}
			if req.Schema != nil {
				trimmed := strings.TrimSpace(text)
				if json.Valid([]byte(trimmed)) {
					res.Parsed = json.RawMessage(trimmed)
				}
			}
			c.logger.Debug("LLM call complete",
				"model", c.model,
				"caller", req.Caller,
				"turn_id", req.TurnID,
				"attempts", attempt,
				"response_length", len(text),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return res, nil
		}

		lastErr = err
		var re *retryableError
		if errors.As(err, &re) {
			lastStatus = re.status
		}
		if !isRetryableError(err) {
			return nil, c.fail(req, attempt, statusOf(err), err, start)
		}
		c.logger.Warn("LLM call failed, retrying",
			"model", c.model,
			"caller", req.Caller,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"error", err,
		)
	}

	return nil, c.fail(req, c.maxRetries, lastStatus, lastErr, start)
}

func (c *Client) fail(req Request, attempts, status int, err error, start time.Time) error {
	c.logger.Error("LLM call failed",
		"model", c.model,
		"caller", req.Caller,
		"turn_id", req.TurnID,
		"attempts", attempts,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	return &ServiceError{Model: c.model, Status: status, Attempts: attempts, Err: err}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) buildRequest(req Request) chatRequest {
	cr := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(req.Effort, req.Schema != nil)},
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		cr.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaFormat{Name: name, Schema: req.Schema, Strict: true},
		}
	}
	return cr
}

// SystemPrompt renders the system message for an effort level.
func SystemPrompt(effort ReasoningEffort, jsonOutput bool) string {
	parts := []string{"You are a helpful assistant."}
	switch effort {
	case EffortHigh, EffortXHigh:
		parts = append(parts, "Think carefully and thoroughly before responding.")
	case EffortMedium:
		parts = append(parts, "Consider the problem carefully before responding.")
	case EffortLow:
		parts = append(parts, "Provide a direct and concise response.")
	}
	if jsonOutput {
		parts = append(parts, "You must respond with valid JSON only, no additional text.")
	}
	return strings.Join(parts, " ")
}

func (c *Client) doRequest(ctx context.Context, req chatRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", classifyContextErr(ctx.Err())
		}
		if isTimeout(err) {
			return "", &retryableError{err: fmt.Errorf("%w: %v", ErrTimeout, err)}
		}
		return "", &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{status: resp.StatusCode, err: ErrRateLimited}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{status: resp.StatusCode, err: fmt.Errorf("server error (%d): %s", resp.StatusCode, truncate(string(body), 200))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", &statusError{status: resp.StatusCode, msg: errResp.Error.Message}
		}
		return "", &statusError{status: resp.StatusCode, msg: truncate(string(body), 200)}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("empty response from API")
	}
	return out.Choices[0].Message.Content, nil
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return fmt.Sprintf("API error (%d): %s", e.status, e.msg) }

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

func classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Completer = (*Client)(nil)
