// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tidyrun/internal/completion"
)

func TestOpenAIClientRequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","choices":[{"message":{"role":"assistant","content":"{\"steps\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := completion.NewOpenAIClient(completion.OpenAIConfig{BaseURL: srv.URL + "/", APIKey: " test-key "})
	text, err := c.Complete(context.Background(), completion.Request{
		Prompt:      "plan please",
		System:      "you are a planner",
		JSON:        true,
		Temperature: completion.Temp(0.1),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"steps":[]}`, text)

	assert.Equal(t, completion.DefaultOpenAIModel, got["model"])
	assert.Equal(t, 0.1, got["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "plan please", msgs[1].(map[string]any)["content"])
}

func TestOpenAIClientOmitsOptionalFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := completion.NewOpenAIClient(completion.OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Complete(context.Background(), completion.Request{Model: "other", Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "other", got["model"])
	assert.NotContains(t, got, "temperature")
	assert.NotContains(t, got, "response_format")
}

func TestOpenAIClientStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, completion.IsAuth},
		{http.StatusForbidden, completion.IsAuth},
		{http.StatusTooManyRequests, completion.IsRateLimited},
		{http.StatusNotFound, completion.IsModelNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			c := completion.NewOpenAIClient(completion.OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
			_, err := c.Complete(context.Background(), completion.Request{Prompt: "x"})
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestOpenAIClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"second"}}]}`))
	}))
	defer srv.Close()

	c := completion.NewOpenAIClient(completion.OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "k",
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	text, err := c.Complete(context.Background(), completion.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "second", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIClientRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"after wait"}}]}`))
	}))
	defer srv.Close()

	c := completion.NewOpenAIClient(completion.OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "k",
		MaxRetries: 2,
		RetryDelay: time.Hour,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	text, err := c.Complete(ctx, completion.Request{Prompt: "x"})
	require.NoError(t, err, "Retry-After replaces the backoff delay")
	assert.Equal(t, "after wait", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIClientRateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c := completion.NewOpenAIClient(completion.OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "k",
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	_, err := c.Complete(context.Background(), completion.Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, completion.IsRateLimited(err), "unexpected error: %v", err)
	assert.Contains(t, err.Error(), "slow down")
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIClientNotConfigured(t *testing.T) {
	c := completion.NewOpenAIClient(completion.OpenAIConfig{})
	_, err := c.Complete(context.Background(), completion.Request{Prompt: "x"})
	require.ErrorIs(t, err, completion.ErrNotConfigured)
}

func TestOllamaClient(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"hi"},"done":true}`))
	}))
	defer srv.Close()

	c := completion.NewOllamaClient(completion.OllamaConfig{BaseURL: srv.URL})
	text, err := c.Complete(context.Background(), completion.Request{Prompt: "x", JSON: true, Temperature: completion.Temp(0.1)})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, map[string]any{"temperature": 0.1}, got["options"])
}

func TestOllamaClientModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer srv.Close()

	c := completion.NewOllamaClient(completion.OllamaConfig{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), completion.Request{Prompt: "x"})
	require.ErrorIs(t, err, completion.ErrModelNotFound)
}

func TestOllamaClientNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := completion.NewOllamaClient(completion.OllamaConfig{BaseURL: url})
	_, err := c.Complete(context.Background(), completion.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ollama is not running")
}

func TestLimitedHonorsContext(t *testing.T) {
	svc := completion.NewLimited(completion.NewScripted("a"), 1)

	_, err := svc.Complete(context.Background(), completion.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = svc.Complete(ctx, completion.Request{})
	require.Error(t, err, "second call within the same minute must wait past the deadline")
}

func TestScripted(t *testing.T) {
	boom := errors.New("boom")
	s := completion.NewScripted("one").Then("", boom)

	text, err := s.Complete(context.Background(), completion.Request{Prompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "one", text)

	_, err = s.Complete(context.Background(), completion.Request{Prompt: "b"})
	require.ErrorIs(t, err, boom)

	_, err = s.Complete(context.Background(), completion.Request{Prompt: "c"})
	require.ErrorIs(t, err, boom, "last reply repeats")

	s.Strict = true
	_, err = s.Complete(context.Background(), completion.Request{Prompt: "d"})
	require.ErrorIs(t, err, completion.ErrScriptExhausted)

	assert.Len(t, s.Requests(), 4)
}
