// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion provides the text-completion backends used by the planner
// and the code synthesizer.
//
// Every backend implements Service: one Request in, one block of text out.
// Backends keep no conversation state between calls.
//
// # Key Types
//
//   - Service: the single-method completion interface
//   - Request: model, prompt, optional system prompt, JSON mode, temperature
//   - OpenAIClient: OpenAI-compatible /chat/completions client (Groq by default)
//   - OllamaClient: local Ollama /api/chat client
//   - Limited: wraps a Service with a request rate limit
//   - Scripted: canned responses for tests and dry runs
//   - ClientError: categorized backend failure
//
// # Usage
//
//	svc := completion.NewOpenAIClient(completion.OpenAIConfig{APIKey: key})
//	text, err := svc.Complete(ctx, completion.Request{
//	    Prompt: prompt,
//	    JSON:   true,
//	})
//	if completion.IsRateLimited(err) {
//	    // back off
//	}
package completion
