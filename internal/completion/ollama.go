// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// Defaults for the Ollama backend.
const (
	// DefaultOllamaURL uses an explicit IPv4 address to avoid IPv6 localhost resolution issues.
	DefaultOllamaURL = "http://127.0.0.1:11434"

	DefaultOllamaModel = "qwen2.5-coder:14b"
)

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OllamaClient completes prompts against a local Ollama server.
type OllamaClient struct {
	cfg  OllamaConfig
	http *http.Client
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model      string      `json:"model"`
	Message    chatMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaClient creates a client, filling zero config values with defaults.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OllamaClient{cfg: cfg, http: httpClient}
}

// Model returns the default model.
func (c *OllamaClient) Model() string {
	return c.cfg.Model
}

// Complete implements Service using a non-streaming /api/chat call.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	body := ollamaChatRequest{Model: c.cfg.Model}
	if req.Model != "" {
		body.Model = req.Model
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.Format = "json"
	}
	if req.Temperature != nil {
		body.Options = &ollamaOptions{Temperature: req.Temperature}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		ce := transportError(ctx, err)
		if e, ok := ce.(*ClientError); ok && e.Type == ErrTypeConnection {
			e.Message = "Ollama is not running"
		}
		return "", ce
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to read response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		var oe ollamaError
		msg := ""
		if json.Unmarshal(data, &oe) == nil {
			msg = oe.Error
		}
		return "", statusError(resp.StatusCode, msg)
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return result.Message.Content, nil
}
