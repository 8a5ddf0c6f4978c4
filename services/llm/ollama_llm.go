// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ollamaTracer = otel.Tracer("avs.chatbot.llm.ollama")

// defaultStopSequences cuts generation at end-of-turn markers and at the
// institute's contact emails, pre-empting hallucinated contact details:
// the real contact block is already in the system prompt.
var defaultStopSequences = []string{
	"<|im_end|>", "<|endoftext|>", "</s>",
	"info@avs.ma", "admissions@avs.ma", "support@avs.ma",
}

// OllamaClient streams chat completions from a self-hosted model server
// speaking the ollama NDJSON chat API.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// NewOllamaClient builds a client from OLLAMA_BASE_URL and OLLAMA_MODEL.
func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if model == "" {
		model = "qwen2.5:3b-instruct"
		slog.Warn("OLLAMA_MODEL not set, defaulting", "model", model)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing ollama client", "base_url", baseURL, "default_model", model)
	return NewOllamaClientWith(baseURL, model, nil), nil
}

// NewOllamaClientWith builds a client with explicit settings, for tests.
// The default http.Client has no overall timeout: streams are long-lived
// and bounded by the request context instead. Connection setup and response
// headers are still bounded so a dead upstream fails fast.
func NewOllamaClientWith(baseURL, model string, httpClient *http.Client) *OllamaClient {
	if httpClient == nil {
		httpClient = &http.Client{Transport: newStreamingTransport()}
	}
	return &OllamaClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}
}

// ChatStream implements StreamTransport against the /api/chat NDJSON
// endpoint. Chunk boundaries are tolerated anywhere, including inside a
// JSON object; see lineBuffer.
func (o *OllamaClient) ChatStream(ctx context.Context, messages []Message,
	params GenerationParams, onDelta StreamCallback) error {

	ctx, span := ollamaTracer.Start(ctx, "OllamaClient.ChatStream")
	defer span.End()

	model := o.model
	if params.Model != "" {
		model = params.Model
	}
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	payload := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
		Options:  buildOllamaOptions(params),
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request to ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat",
		bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create chat request to ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("ollama chat returned an error",
			"status_code", resp.StatusCode, "response", string(errBody))
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return mapUpstreamStatus(resp.StatusCode, string(errBody))
	}

	return o.relayStream(ctx, resp.Body, onDelta)
}

// relayStream drains the NDJSON body, forwarding content chunks to the
// callback until a done chunk arrives. Reading stops at the first done
// chunk even if the upstream keeps the connection open.
func (o *OllamaClient) relayStream(ctx context.Context, body io.Reader, onDelta StreamCallback) error {
	var lines lineBuffer
	readBuf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream cancelled: %w", err)
		}

		n, readErr := body.Read(readBuf)
		if n > 0 {
			lines.Append(readBuf[:n])
		}

		for {
			line, ok := lines.NextLine()
			if !ok {
				break
			}
			chunk, err := parseStreamLine(line)
			if err != nil {
				// The line may be an object split across reads; hold it
				// and wait for more bytes.
				lines.Requeue(line)
				break
			}
			if chunk == nil {
				continue
			}
			if chunk.Error != "" {
				return fmt.Errorf("%w: upstream reported: %s", ErrUpstreamUnavailable, chunk.Error)
			}
			if chunk.Done {
				return nil
			}
			if chunk.Message.Content != "" {
				if err := onDelta(chunk.Message.Content); err != nil {
					return fmt.Errorf("stream callback failed: %w", err)
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if len(bytes.TrimSpace(lines.Pending())) > 0 {
					return fmt.Errorf("%w: stream ended mid-object with %d unparsed bytes",
						ErrUpstreamUnavailable, len(lines.Pending()))
				}
				// EOF without a done chunk: the upstream closed cleanly but
				// never signalled completion.
				return fmt.Errorf("%w: stream ended without completion signal", ErrUpstreamUnavailable)
			}
			return fmt.Errorf("failed to read ollama stream: %w", readErr)
		}
	}
}

// buildOllamaOptions merges request params over the self-hosted defaults:
// small context, low temperature, conservative sampling and the shared
// stop-sequence list.
func buildOllamaOptions(params GenerationParams) map[string]any {
	options := map[string]any{
		"temperature":    float32(0.3),
		"top_p":          float32(0.9),
		"top_k":          40,
		"repeat_penalty": float32(1.1),
		"num_ctx":        2048,
		"num_thread":     4,
		"stop":           defaultStopSequences,
	}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.RepeatPenalty != nil {
		options["repeat_penalty"] = *params.RepeatPenalty
	}
	if params.NumCtx != nil {
		options["num_ctx"] = *params.NumCtx
	}
	if params.NumThread != nil {
		options["num_thread"] = *params.NumThread
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	return options
}

// mapUpstreamStatus converts upstream HTTP failures to the sentinel errors
// the handler maps onto the wire contract. The mappings are exact: 429 and
// 402 keep their meaning, everything else collapses to unavailable.
func mapUpstreamStatus(status int, body string) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamRateLimited, status, body)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamPaymentRequired, status, body)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, status, body)
	}
}
