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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaServer(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaClientWith(srv.URL, "qwen2.5:3b-instruct", srv.Client())
}

func collectDeltas(deltas *[]string) StreamCallback {
	return func(content string) error {
		*deltas = append(*deltas, content)
		return nil
	}
}

func TestOllamaChatStream_ForwardsContentChunks(t *testing.T) {
	client := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5:3b-instruct", req.Model)
		assert.True(t, req.Stream)

		w.Write([]byte(`{"message":{"role":"assistant","content":"Bon"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":"jour"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}` + "\n"))
	})

	var deltas []string
	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{}, collectDeltas(&deltas))

	require.NoError(t, err)
	assert.Equal(t, []string{"Bon", "jour"}, deltas)
}

func TestOllamaChatStream_ReassemblesObjectSplitAcrossWrites(t *testing.T) {
	client := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// One JSON object split mid-key across two flushed writes.
		w.Write([]byte(`{"message":{"role":"assistant","con`))
		flusher.Flush()
		w.Write([]byte(`tent":"Bonjour"},"done":false}` + "\n"))
		w.Write([]byte(`{"done":true}` + "\n"))
	})

	var deltas []string
	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{}, collectDeltas(&deltas))

	require.NoError(t, err)
	assert.Equal(t, []string{"Bonjour"}, deltas)
}

func TestOllamaChatStream_ModelOverride(t *testing.T) {
	client := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2:1b", req.Model)
		w.Write([]byte(`{"done":true}` + "\n"))
	})

	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}},
		GenerationParams{Model: "llama3.2:1b"},
		func(string) error { return nil })

	require.NoError(t, err)
}

func TestOllamaChatStream_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrUpstreamRateLimited},
		{"payment required", http.StatusPaymentRequired, ErrUpstreamPaymentRequired},
		{"server error", http.StatusInternalServerError, ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream failure", tt.status)
			})

			err := client.ChatStream(context.Background(),
				[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{},
				func(string) error { return nil })

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOllamaChatStream_UpstreamErrorChunk(t *testing.T) {
	client := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model not found"}` + "\n"))
	})

	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{},
		func(string) error { return nil })

	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaChatStream_EOFWithoutDoneIsUnavailable(t *testing.T) {
	client := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"Bon"},"done":false}` + "\n"))
	})

	var deltas []string
	err := client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "Salut"}}, GenerationParams{}, collectDeltas(&deltas))

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, []string{"Bon"}, deltas, "content before the drop is still delivered")
}

func TestOllamaChatStream_CallbackErrorStopsStream(t *testing.T) {
	client := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"Bon"},"done":false}` + "\n"))
		w.Write([]byte(`{"done":true}` + "\n"))
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

func TestBuildOllamaOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		options := buildOllamaOptions(GenerationParams{})

		assert.Equal(t, float32(0.3), options["temperature"])
		assert.Equal(t, 2048, options["num_ctx"])
		assert.Equal(t, defaultStopSequences, options["stop"])
		assert.NotContains(t, options, "num_predict")
	})

	t.Run("overrides", func(t *testing.T) {
		temp := float32(0.7)
		maxTokens := 256
		options := buildOllamaOptions(GenerationParams{
			Temperature: &temp,
			MaxTokens:   &maxTokens,
			Stop:        []string{"END"},
		})

		assert.Equal(t, float32(0.7), options["temperature"])
		assert.Equal(t, 256, options["num_predict"])
		assert.Equal(t, []string{"END"}, options["stop"])
	})
}
