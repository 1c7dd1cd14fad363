// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package codegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jeranaias/tidyrun/internal/completion"
	"github.com/jeranaias/tidyrun/internal/sandbox"
	"github.com/jeranaias/tidyrun/internal/table"
)

// Temperature keeps generated code close to deterministic.
const Temperature = 0.1

// SampleRows is the number of leading rows shown to the model.
const SampleRows = 3

// ErrEmptyCode is returned when the model answers with nothing but fences or whitespace.
var ErrEmptyCode = errors.New("model returned no code")

// Synthesizer generates code for a single cleaning step.
type Synthesizer struct {
	svc    completion.Service
	model  string
	logger *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithModel overrides the backend's default model.
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithLogger sets the logger used for prompt tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Synthesizer backed by svc.
func New(svc completion.Service, opts ...Option) *Synthesizer {
	s := &Synthesizer{svc: svc, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize asks the model for code that performs step against t. A non-empty
// priorError is included with an instruction to fix it. Service errors are
// returned as-is.
func (s *Synthesizer) Synthesize(ctx context.Context, t *table.Table, step, priorError string) (string, error) {
	if s.svc == nil {
		return "", fmt.Errorf("completion service not configured")
	}
	prompt := BuildPrompt(t, step, priorError)
	s.logger.Debug("synthesizing step", "step", step, "retry", priorError != "", "prompt_bytes", len(prompt))

	text, err := s.svc.Complete(ctx, completion.Request{
		Model:       s.model,
		Prompt:      prompt,
		Temperature: completion.Temp(Temperature),
	})
	if err != nil {
		return "", err
	}
	code := StripFences(text)
	if code == "" {
		return "", ErrEmptyCode
	}
	return code, nil
}

const fewShot = `Task: "Convert 'Price' to numeric"
BAD CODE: df.astype("Price", "float64")   // throws on 'None'
GOOD CODE: df.toNumeric("Price")           // unparsable values become null

Task: "Drop nulls in 'Email'"
BAD CODE: df = df.dropna()                 // drops rows missing anything
GOOD CODE: df = df.dropna(["Email"])       // targeted`

// BuildPrompt renders the synthesis prompt.
func BuildPrompt(t *table.Table, step, priorError string) string {
	var b strings.Builder
	b.WriteString("You are a senior data engineer writing JavaScript against a DataFrame API.\n\n")

	b.WriteString("CURRENT DATA TYPES:\n")
	b.WriteString(t.DtypesString())
	b.WriteString("\n\nSAMPLE DATA:\n")
	b.WriteString(t.HeadString(SampleRows))
	b.WriteString("\n\nTASK: ")
	b.WriteString(step)
	b.WriteString("\n\n")
	b.WriteString(fewShot)
	b.WriteString("\n\nAPI:\n")
	b.WriteString(sandbox.APIReference)

	if priorError != "" {
		fmt.Fprintf(&b, "\n\nPREVIOUS ATTEMPT FAILED: %s\nFIX THIS ERROR.", priorError)
	}

	b.WriteString(`

RULES:
1. Use the variable df. Methods that return a DataFrame must be assigned back: df = df.dropna(["Email"]).
2. Only df, tidy and console are available. There is no require, import, filesystem or network.
3. Return ONLY valid JavaScript. No markdown, no explanations.`)
	return b.String()
}

var fenceReplacer = strings.NewReplacer(
	"```javascript", "",
	"```python", "",
	"```json", "",
	"```js", "",
	"```", "",
)

// StripFences removes markdown code fence markers and surrounding whitespace.
func StripFences(text string) string {
	return strings.TrimSpace(fenceReplacer.Replace(text))
}
