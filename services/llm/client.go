// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the streaming upstream transports for the chatbot.
//
// Two upstream shapes are supported behind one interface: a hosted gateway
// speaking OpenAI-style SSE (GatewayClient) and a self-hosted model server
// speaking newline-delimited JSON (OllamaClient). Both deliver incremental
// text through a StreamCallback; the HTTP handler owns the client-facing
// SSE framing so the wire contract is identical regardless of upstream.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// newStreamingTransport bounds connection setup and response headers without
// imposing an overall request timeout, which would cut streams short. The
// stream itself is bounded by the request context.
func newStreamingTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}

// GenerationParams carries per-request generation settings. Nil pointer
// fields mean "use the transport's default".
type GenerationParams struct {
	Model         string   `json:"model,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"`
	NumCtx        *int     `json:"num_ctx,omitempty"`
	NumThread     *int     `json:"num_thread,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

// StreamCallback receives one incremental content chunk. Returning an error
// aborts the stream; the transport stops reading and propagates the error.
type StreamCallback func(content string) error

// Sentinel errors for upstream HTTP failures. The handler maps these to the
// exact response codes the API contract requires: 429, 402, 503.
var (
	ErrUpstreamRateLimited     = errors.New("upstream rate limited")
	ErrUpstreamPaymentRequired = errors.New("upstream payment required")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
)

// StreamTransport is the pluggable upstream boundary of the chat pipeline.
//
// ChatStream issues a streaming chat-completion request and invokes onDelta
// for every non-empty content chunk, in order, until the upstream signals
// completion. It returns nil only on a clean completion; context
// cancellation, upstream failures and callback errors all surface as
// non-nil errors so the caller can distinguish a finished transcript from a
// truncated one.
type StreamTransport interface {
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, onDelta StreamCallback) error
}

// Message is one conversational turn sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
