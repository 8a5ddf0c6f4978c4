// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var gatewayTracer = otel.Tracer("avs.chatbot.llm.gateway")

// GatewayClient streams chat completions from the hosted AI gateway, which
// speaks the OpenAI chat-completions dialect over SSE. Request and frame
// types come from go-openai; the response body is read directly so frames
// reach the client as the upstream produced them.
type GatewayClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewGatewayClient builds a client from AI_GATEWAY_URL, AI_GATEWAY_API_KEY
// and AI_GATEWAY_MODEL. The URL and key are required.
func NewGatewayClient() (*GatewayClient, error) {
	endpoint := os.Getenv("AI_GATEWAY_URL")
	apiKey := os.Getenv("AI_GATEWAY_API_KEY")
	model := os.Getenv("AI_GATEWAY_MODEL")
	if endpoint == "" {
		return nil, fmt.Errorf("AI_GATEWAY_URL environment variable not set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("AI_GATEWAY_API_KEY environment variable not set")
	}
	if model == "" {
		model = "google/gemini-2.5-flash"
		slog.Warn("AI_GATEWAY_MODEL not set, defaulting", "model", model)
	}
	slog.Info("Initializing gateway client", "endpoint", endpoint, "model", model)
	return NewGatewayClientWith(endpoint, apiKey, model, nil), nil
}

// NewGatewayClientWith builds a client with explicit settings, for tests.
func NewGatewayClientWith(endpoint, apiKey, model string, httpClient *http.Client) *GatewayClient {
	if httpClient == nil {
		httpClient = &http.Client{Transport: newStreamingTransport()}
	}
	return &GatewayClient{
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

// ChatStream implements StreamTransport against the gateway's streaming
// chat-completions endpoint.
func (g *GatewayClient) ChatStream(ctx context.Context, messages []Message,
	params GenerationParams, onDelta StreamCallback) error {

	ctx, span := gatewayTracer.Start(ctx, "GatewayClient.ChatStream")
	defer span.End()

	model := g.model
	if params.Model != "" {
		model = params.Model
	}
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	payload := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	if params.Temperature != nil {
		payload.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		payload.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		payload.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		payload.Stop = params.Stop
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("Gateway returned an error",
			"status_code", resp.StatusCode, "response", string(errBody))
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return mapUpstreamStatus(resp.StatusCode, string(errBody))
	}

	return g.relaySSE(ctx, resp.Body, onDelta)
}

// relaySSE reads the upstream SSE body line by line, forwarding delta
// content until the terminal [DONE] frame.
func (g *GatewayClient) relaySSE(ctx context.Context, body io.Reader, onDelta StreamCallback) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream cancelled: %w", err)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var frame openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			slog.Debug("Skipping unparseable gateway frame", "error", err)
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}
		if content := frame.Choices[0].Delta.Content; content != "" {
			if err := onDelta(content); err != nil {
				return fmt.Errorf("stream callback failed: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read gateway stream: %w", err)
	}
	// EOF without [DONE]: the gateway closed early.
	return fmt.Errorf("%w: stream ended without completion signal", ErrUpstreamUnavailable)
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
