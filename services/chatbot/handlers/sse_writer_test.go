// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(nonFlushingWriter{httptest.NewRecorder()})
	assert.Error(t, err)
}

// nonFlushingWriter hides the recorder's Flush method.
type nonFlushingWriter struct {
	rec *httptest.ResponseRecorder
}

func (w nonFlushingWriter) Header() http.Header         { return w.rec.Header() }
func (w nonFlushingWriter) Write(p []byte) (int, error) { return w.rec.Write(p) }
func (w nonFlushingWriter) WriteHeader(code int)        { w.rec.WriteHeader(code) }

func TestSSEWriter_WriteDelta(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteDelta("Bonjour"))
	require.NoError(t, w.WriteDelta(`avec "guillemets"`))

	body := rec.Body.String()
	assert.Contains(t, body, `data: {"choices":[{"delta":{"content":"Bonjour"}}]}`+"\n\n")
	assert.Contains(t, body, `data: {"choices":[{"delta":{"content":"avec \"guillemets\""}}]}`+"\n\n")
	assert.True(t, rec.Flushed)
}

func TestSSEWriter_WriteDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteDone())
	assert.Equal(t, "data: [DONE]\n\n", rec.Body.String())
}

func TestSSEWriter_WriteKeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteKeepAlive())
	assert.Equal(t, ": ping\n\n", rec.Body.String())
}

func TestSetSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSSEHeaders(rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}
