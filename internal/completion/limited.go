// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited wraps a Service with a token-bucket request limit.
type Limited struct {
	next    Service
	limiter *rate.Limiter
}

// NewLimited allows perMinute requests per minute with a burst of one.
// A non-positive perMinute disables limiting.
func NewLimited(next Service, perMinute int) *Limited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, 1)}
}

// Complete waits for a token, then delegates.
func (l *Limited) Complete(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Complete(ctx, req)
}
