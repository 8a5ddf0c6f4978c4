// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayServer(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGatewayClientWith(srv.URL, "test-key", "google/gemini-2.5-flash", srv.Client())
}

func sseFrame(content string) string {
	frame := openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: content}},
		},
	}
	payload, _ := json.Marshal(frame)
	return "data: " + string(payload) + "\n\n"
}

func TestGatewayChatStream_ForwardsDeltas(t *testing.T) {
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "google/gemini-2.5-flash", req.Model)
		assert.True(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseFrame("Bon")))
		w.Write([]byte(sseFrame("jour")))
		w.Write([]byte("data: [DONE]\n\n"))
	})

	var deltas []string
	err := client.ChatStream(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "Salut"},
	}, GenerationParams{}, collectDeltas(&deltas))

	require.NoError(t, err)
	assert.Equal(t, []string{"Bon", "jour"}, deltas)
}

func TestGatewayChatStream_SkipsCommentsAndEmptyFrames(t *testing.T) {
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(": keep-alive\n\n"))
		w.Write([]byte("data: {\"choices\":[]}\n\n"))
		w.Write([]byte(sseFrame("Bonjour")))
		w.Write([]byte("data: [DONE]\n\n"))
	})

	var deltas []string
	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{}, collectDeltas(&deltas))

	require.NoError(t, err)
	assert.Equal(t, []string{"Bonjour"}, deltas)
}

func TestGatewayChatStream_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrUpstreamRateLimited},
		{"payment required", http.StatusPaymentRequired, ErrUpstreamPaymentRequired},
		{"bad gateway", http.StatusBadGateway, ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gateway failure", tt.status)
			})

			err := client.ChatStream(context.Background(),
				[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{},
				func(string) error { return nil })

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGatewayChatStream_EOFWithoutDoneIsUnavailable(t *testing.T) {
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sseFrame("Bon")))
	})

	var deltas []string
	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{}, collectDeltas(&deltas))

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, []string{"Bon"}, deltas)
}

func TestGatewayChatStream_GenerationParamsForwarded(t *testing.T) {
	temp := float32(0.4)
	maxTokens := 512

	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 0.4, req.Temperature, 0.001)
		assert.Equal(t, 512, req.MaxTokens)
		w.Write([]byte("data: [DONE]\n\n"))
	})

	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}},
		GenerationParams{Temperature: &temp, MaxTokens: &maxTokens},
		func(string) error { return nil })

	require.NoError(t, err)
}

func TestGatewayChatStream_CallbackErrorStopsStream(t *testing.T) {
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sseFrame("Bon")))
		w.Write([]byte(sseFrame("jour")))
		w.Write([]byte("data: [DONE]\n\n"))
	})

	calls := 0
	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{},
		func(string) error {
			calls++
			return assert.AnError
		})

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
