// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the number of requests allowed per key per window.
	DefaultRateLimit = 10

	// DefaultRateWindow is the trailing window length.
	DefaultRateWindow = 60 * time.Second
)

// RateLimiter is a per-process sliding-window counter keyed by user id or
// caller IP. It holds only timestamps inside the trailing window; stale
// entries are pruned on each check, not by a background sweep.
//
// The limiter is in-memory and non-distributed: counters reset on process
// restart and do not coordinate across instances. That is an accepted
// limitation of the design, not something this type papers over.
//
// Unlike a token bucket, acceptance appends the current timestamp and
// rejection records nothing, so a rejected burst does not extend the window.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewRateLimiter builds a limiter. Non-positive arguments fall back to the
// defaults of 10 requests per 60 seconds.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether a request under key may proceed, recording it when
// accepted. Keys of empty string are treated as the shared "anonymous"
// bucket by the caller; this type does not special-case them.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	fresh := r.hits[key][:0]
	for _, t := range r.hits[key] {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= r.limit {
		r.hits[key] = fresh
		return false
	}

	r.hits[key] = append(fresh, now)
	return true
}

// Reset clears all counters. Test helper.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits = make(map[string][]time.Time)
}
