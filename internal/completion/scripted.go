// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned when a Scripted service runs out of replies.
var ErrScriptExhausted = errors.New("scripted completion: no more replies")

// Reply is one canned response.
type Reply struct {
	Text string
	Err  error
}

// Scripted returns canned replies in order and records every request.
// Once the script is exhausted the last reply repeats, unless Strict is set.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	next     int
	requests []Request

	// Strict makes an exhausted script return ErrScriptExhausted
	Strict bool
}

// NewScripted creates a service that answers with texts in order.
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Then appends a reply and returns s for chaining.
func (s *Scripted) Then(text string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, Reply{Text: text, Err: err})
	return s
}

// Complete implements Service.
func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.replies) == 0 {
		return "", ErrScriptExhausted
	}
	i := s.next
	if i >= len(s.replies) {
		if s.Strict {
			return "", ErrScriptExhausted
		}
		i = len(s.replies) - 1
	} else {
		s.next++
	}
	r := s.replies[i]
	return r.Text, r.Err
}

// Requests returns a copy of the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}
