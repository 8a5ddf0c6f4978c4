// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// =============================================================================
// Wire Format
// =============================================================================

// deltaFrame is the minimal OpenAI-compatible streaming frame the web client
// consumes. Only the fields the client reads are emitted.
type deltaFrame struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Delta deltaContent `json:"delta"`
}

type deltaContent struct {
	Content string `json:"content"`
}

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for relaying chat completions as
// Server-Sent Events.
//
// # Description
//
// SSEWriter abstracts the SSE wire format so handlers deal in content
// deltas rather than byte framing. Each delta becomes one
// "data: {json}\n\n" frame; WriteDone emits the terminal
// "data: [DONE]\n\n" sentinel.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: the relay goroutine and
// the keep-alive ticker write through the same writer.
type SSEWriter interface {
	// WriteDelta writes one content delta as an OpenAI-compatible frame
	// and flushes it immediately.
	WriteDelta(content string) error

	// WriteDone writes the terminal [DONE] sentinel. Call exactly once,
	// after the last delta.
	WriteDone() error

	// WriteKeepAlive sends an SSE comment (": ping\n\n") to keep the
	// connection alive through proxies during upstream stalls. Comments
	// are invisible to SSE clients.
	WriteKeepAlive() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// sseWriter implements SSEWriter over an http.ResponseWriter.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// =============================================================================
// Constructor
// =============================================================================

// NewSSEWriter creates an SSEWriter for the given ResponseWriter.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - SSEWriter: Ready to write frames.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders()
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

// =============================================================================
// Methods
// =============================================================================

func (w *sseWriter) WriteDelta(content string) error {
	frame := deltaFrame{
		Choices: []deltaChoice{{Delta: deltaContent{Content: content}}},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal delta frame: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write delta frame: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteDone() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprint(w.writer, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("write done sentinel: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprint(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
