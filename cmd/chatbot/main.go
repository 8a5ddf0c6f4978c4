// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command chatbot starts the AVS assistant HTTP server.
//
// This is the main entry point for the containerized chatbot service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - CHATBOT_PORT: HTTP server port (default: 8090)
//   - SUPABASE_URL: Platform backend base URL (required)
//   - SUPABASE_ANON_KEY: Platform backend anon key (required)
//   - AI_GATEWAY_URL: Hosted AI gateway endpoint (required)
//   - AI_GATEWAY_API_KEY: Hosted AI gateway key (required)
//   - AI_GATEWAY_MODEL: Gateway model name (default: google/gemini-2.5-flash)
//   - OLLAMA_BASE_URL: Self-hosted Ollama base URL (required)
//   - OLLAMA_MODEL: Ollama model name (default: qwen2.5:3b-instruct)
//   - CHAT_RATE_LIMIT: Requests per client per window (default: 10)
//   - CHAT_RATE_WINDOW_SECONDS: Rate limit window (default: 60)
//   - CHAT_TRUST_CLIENT_ROLE: Honor client role hints - true/false (default: false)
//   - CHAT_ALLOWED_ORIGINS: Comma-separated CORS origins (default: all)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: avs-otel-collector:4317)
//   - CHATBOT_LOG_DIR: Directory for daily JSON log files (default: stderr only)
//
// # Usage
//
//	# Build
//	go build -o chatbot ./cmd/chatbot
//
//	# Run
//	./chatbot
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/SHAHINE00/avswebsitedemo-sub002/pkg/logging"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot"
)

func main() {
	// Setup structured logging: JSON to stderr, optional daily file
	logger := logging.New(logging.Config{
		Service: "chatbot",
		JSON:    true,
		LogDir:  os.Getenv("CHATBOT_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := chatbot.Config{
		Port:               getEnvInt("CHATBOT_PORT", 8090),
		OTelEndpoint:       getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "avs-otel-collector:4317"),
		RateLimit:          getEnvInt("CHAT_RATE_LIMIT", 10),
		RateWindow:         time.Duration(getEnvInt("CHAT_RATE_WINDOW_SECONDS", 60)) * time.Second,
		TrustClientRole:    getEnvBool("CHAT_TRUST_CLIENT_ROLE", false),
		AllowedOrigins:     getEnvList("CHAT_ALLOWED_ORIGINS"),
		AnalyticsQueueSize: getEnvInt("CHAT_ANALYTICS_QUEUE", 256),
	}

	slog.Info("Starting chatbot",
		"port", cfg.Port,
		"rate_limit", cfg.RateLimit,
		"trust_client_role", cfg.TrustClientRole,
	)

	svc, err := chatbot.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create chatbot: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Chatbot error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable into a slice.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
