// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	defer logger.Close()

	require.NotNil(t, logger.Slog())
	assert.Nil(t, logger.file)
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Service: "chatbot",
		LogDir:  dir,
		Quiet:   true,
	})

	logger.Slog().Info("startup complete", "port", 8090)
	require.NoError(t, logger.Close())

	name := "chatbot_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.Split(string(data), "\n")[0]), &entry))
	assert.Equal(t, "startup complete", entry["msg"])
	assert.Equal(t, "chatbot", entry["service"])
	assert.EqualValues(t, 8090, entry["port"])
}

func TestNew_UnwritableLogDirDegradesToStderr(t *testing.T) {
	logger := New(Config{
		Service: "chatbot",
		LogDir:  string([]byte{0}), // never a creatable directory
	})
	defer logger.Close()

	// Must not panic and must still produce a usable logger.
	require.NotNil(t, logger.Slog())
	assert.Nil(t, logger.file)
}

func TestNew_LevelFilter(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Service: "chatbot",
		Level:   slog.LevelWarn,
		LogDir:  dir,
		Quiet:   true,
	})

	logger.Slog().Info("filtered out")
	logger.Slog().Warn("kept")
	require.NoError(t, logger.Close())

	name := "chatbot_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	content := string(data)
	assert.NotContains(t, content, "filtered out")
	assert.Contains(t, content, "kept")
}

func TestClose_Idempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

type countingHandler struct {
	level slog.Level
	count int
}

func (h *countingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *countingHandler) Handle(context.Context, slog.Record) error {
	h.count++
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler_FansOutToEnabledHandlers(t *testing.T) {
	infoHandler := &countingHandler{level: slog.LevelInfo}
	errorHandler := &countingHandler{level: slog.LevelError}
	logger := slog.New(&multiHandler{handlers: []slog.Handler{infoHandler, errorHandler}})

	logger.Info("info message")
	logger.Error("error message")

	assert.Equal(t, 2, infoHandler.count)
	assert.Equal(t, 1, errorHandler.count)
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tilde", "~/logs", filepath.Join(home, "logs")},
		{"absolute", "/var/log/avs", "/var/log/avs"},
		{"relative", "logs", "logs"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandPath(tt.in))
		})
	}
}
