// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Defaults for the OpenAI-compatible backend.
const (
	// DefaultOpenAIBaseURL points at Groq's OpenAI-compatible endpoint.
	DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"

	// DefaultOpenAIModel is the model used when neither the config nor the request names one.
	DefaultOpenAIModel = "llama-3.3-70b-versatile"

	defaultRetryDelay = 500 * time.Millisecond

	// maxRetryAfter caps the wait a 429 Retry-After header can ask for.
	maxRetryAfter = time.Minute
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// MaxRetries is the number of extra attempts for 429, 5xx and transport errors
	MaxRetries int

	// RetryDelay is the base backoff delay, doubled after each retry
	RetryDelay time.Duration

	// HTTPClient overrides the shared client when set
	HTTPClient *http.Client

	Logger *slog.Logger
}

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
//
// The client is safe for concurrent use.
type OpenAIClient struct {
	cfg    OpenAIConfig
	http   *http.Client
	logger *slog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAIClient creates a client, filling zero config values with defaults.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OpenAIClient{cfg: cfg, http: httpClient, logger: logger}
}

// Model returns the default model.
func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}

// IsConfigured reports whether an API key is set.
func (c *OpenAIClient) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// Complete implements Service.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.IsConfigured() {
		return "", &ClientError{Type: ErrTypeNotConfigured, Message: "API key not configured"}
	}

	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	resp, err := c.doWithRetry(ctx, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to read response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		msg := ""
		if json.Unmarshal(data, &apiErr) == nil {
			msg = apiErr.Error.Message
		}
		return "", statusError(resp.StatusCode, msg)
	}

	var result chatResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if len(result.Choices) == 0 {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "response has no choices"}
	}
	c.logger.Debug("completion finished",
		"model", result.Model,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens)
	return result.Choices[0].Message.Content, nil
}

// doWithRetry retries transport failures and 5xx responses with exponential backoff.
func (c *OpenAIClient) doWithRetry(ctx context.Context, payload []byte) (*http.Response, error) {
	var lastErr error
	delay := c.cfg.RetryDelay
	wait := delay
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			delay *= 2
			wait = delay
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = transportError(ctx, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			c.logger.Warn("completion request failed", "attempt", attempt+1, "err", err)
			continue
		}
		c.logger.Debug("completion response", "status", resp.StatusCode, "duration", time.Since(start))

		// The last 429 is returned so the caller sees the backend's message.
		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.cfg.MaxRetries {
			if d, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				wait = d
			}
			lastErr = statusError(resp.StatusCode, "")
			c.logger.Warn("completion rate limited", "attempt", attempt+1, "retry_in", wait)
			drainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode < 500 {
			return resp, nil
		}
		lastErr = statusError(resp.StatusCode, "")
		drainAndClose(resp.Body)
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
// The result is capped at maxRetryAfter.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = max(at.Sub(now), 0)
	} else {
		return 0, false
	}
	return min(d, maxRetryAfter), true
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, MaxResponseSize))
	r.Close()
}
