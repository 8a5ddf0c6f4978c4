// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the chatbot endpoints.
//
// Both chat endpoints share one pipeline: sanitize → rate limit → off-topic
// classifier → role resolution → context assembly → prompt build → upstream
// relay. They differ only in the upstream transport (hosted gateway vs
// self-hosted Ollama) and in how much history travels upstream.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/analytics"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/middleware"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/observability"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/pipeline"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/llm"
)

var tracer = otel.Tracer("avs.chatbot.handlers")

// =============================================================================
// Constants
// =============================================================================

const (
	// heartbeatInterval is the interval for sending keepalive pings.
	// Set to 15s to stay well under typical LB timeouts (60s for Nginx).
	heartbeatInterval = 15 * time.Second

	// maxStreamDuration bounds a single upstream generation. Streams that
	// run longer are cancelled and reported as upstream failures.
	maxStreamDuration = 5 * time.Minute

	// ollamaHistoryTurns limits how much history travels to the
	// self-hosted model. Small context windows degrade badly when stuffed
	// with full transcripts.
	ollamaHistoryTurns = 2
)

// =============================================================================
// Interface Definition
// =============================================================================

// ConversationStore creates conversation rows and serves recent turns. The
// self-hosted endpoint receives only the latest user text on the wire and
// reconstructs its short history from the store.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID *string) (string, error)
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]datatypes.StoredMessage, error)
}

// ChatHandler defines the contract for the streaming chat endpoints.
//
// # Description
//
// ChatHandler exposes one handler per upstream transport. Both run the same
// request pipeline; see the package comment for the stages.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
// HTTP handlers are called concurrently by the Gin framework.
type ChatHandler interface {
	// HandleGatewayChat processes POST /v1/chat requests, relaying through
	// the hosted AI gateway. The full validated message history travels
	// upstream.
	HandleGatewayChat(c *gin.Context)

	// HandleOllamaChat processes POST /v1/ollama-chat requests, relaying
	// through the self-hosted Ollama instance. History is truncated to the
	// last two turns and the request may override the model name.
	HandleOllamaChat(c *gin.Context)
}

// =============================================================================
// Struct Definition
// =============================================================================

type chatHandler struct {
	gateway       llm.StreamTransport
	ollama        llm.StreamTransport
	limiter       *pipeline.RateLimiter
	roles         *pipeline.RoleResolver
	knowledge     *pipeline.KnowledgeBase
	roleData      *pipeline.RoleData
	conversations ConversationStore
	analytics     *analytics.Writer
}

// =============================================================================
// Constructor
// =============================================================================

// NewChatHandler creates a ChatHandler with the provided dependencies.
//
// # Inputs
//
//   - gateway: Transport for the hosted gateway endpoint. Must not be nil.
//   - ollama: Transport for the self-hosted endpoint. Must not be nil.
//   - limiter: Per-client sliding window rate limiter. Must not be nil.
//   - roles: Role resolver. Must not be nil.
//   - knowledge: Knowledge base cache. Must not be nil.
//   - roleData: Role data snapshot cache. Must not be nil.
//   - conversations: Conversation store. Must not be nil.
//   - analyticsWriter: Background persistence writer. Must not be nil.
//
// # Outputs
//
//   - ChatHandler: Ready for use with the Gin router.
//
// # Limitations
//
//   - Panics on any nil dependency (programming errors).
func NewChatHandler(
	gateway llm.StreamTransport,
	ollama llm.StreamTransport,
	limiter *pipeline.RateLimiter,
	roles *pipeline.RoleResolver,
	knowledge *pipeline.KnowledgeBase,
	roleData *pipeline.RoleData,
	conversations ConversationStore,
	analyticsWriter *analytics.Writer,
) ChatHandler {
	if gateway == nil {
		panic("NewChatHandler: gateway must not be nil")
	}
	if ollama == nil {
		panic("NewChatHandler: ollama must not be nil")
	}
	if limiter == nil {
		panic("NewChatHandler: limiter must not be nil")
	}
	if roles == nil {
		panic("NewChatHandler: roles must not be nil")
	}
	if knowledge == nil {
		panic("NewChatHandler: knowledge must not be nil")
	}
	if roleData == nil {
		panic("NewChatHandler: roleData must not be nil")
	}
	if conversations == nil {
		panic("NewChatHandler: conversations must not be nil")
	}
	if analyticsWriter == nil {
		panic("NewChatHandler: analyticsWriter must not be nil")
	}

	return &chatHandler{
		gateway:       gateway,
		ollama:        ollama,
		limiter:       limiter,
		roles:         roles,
		knowledge:     knowledge,
		roleData:      roleData,
		conversations: conversations,
		analytics:     analyticsWriter,
	}
}

// =============================================================================
// Endpoint Entry Points
// =============================================================================

func (h *chatHandler) HandleGatewayChat(c *gin.Context) {
	h.handleChat(c, observability.EndpointGatewayChat, h.gateway, false)
}

func (h *chatHandler) HandleOllamaChat(c *gin.Context) {
	h.handleChat(c, observability.EndpointOllamaChat, h.ollama, true)
}

// =============================================================================
// Shared Pipeline
// =============================================================================

// handleChat runs the full request pipeline for one chat turn.
//
// # Description
//
// The flow is:
//  1. Parse and validate the request body
//  2. Rate limit by user id, else by client IP
//  3. Sanitize the latest user input
//  4. Off-topic classifier short-circuit (JSON reply, no stream)
//  5. Resolve the caller's role (parallel privilege checks)
//  6. Ensure a conversation row exists (lazy creation)
//  7. Assemble context (knowledge base + role data, in parallel)
//  8. Build the localized system prompt and the upstream message list
//  9. Relay the upstream stream as SSE delta frames
//  10. Queue transcript rows and analytics (fire and forget)
//
// Upstream failures before the first delta map to HTTP errors:
//   - 429 RATE_LIMIT when the upstream rejects with 429
//   - 402 PAYMENT_REQUIRED when the upstream rejects with 402
//   - 503 GATEWAY_ERROR for every other upstream failure
//
// After the first delta the response is already streaming; failures then
// terminate the stream without the [DONE] sentinel. Persistence and
// analytics failures never surface to the client.
func (h *chatHandler) handleChat(
	c *gin.Context,
	endpoint observability.Endpoint,
	transport llm.StreamTransport,
	selfHosted bool,
) {
	startTime := time.Now()
	requestID := uuid.New().String()

	ctx, span := tracer.Start(c.Request.Context(), "handleChat")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("chat.endpoint", string(endpoint)),
	)

	// A panic anywhere in the pipeline must still produce a JSON envelope
	// when the stream has not started, and an analytics trail either way.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in chat pipeline", "panic", r, "requestId", requestID)
			span.SetStatus(codes.Error, "panic")
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeInternal)
			}
			h.analytics.RecordEvent("", datatypes.EventCriticalError, map[string]any{
				"request_id": requestID,
				"endpoint":   string(endpoint),
				"panic":      fmt.Sprint(r),
			})
			if !c.Writer.Written() {
				c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
					Error:     datatypes.ErrorCodeInternal,
					Message:   pipeline.ErrorMessage(datatypes.ErrorCodeInternal, datatypes.LanguageFrench),
					RequestID: requestID,
				})
			}
		}
	}()

	success := false
	if m := observability.DefaultMetrics; m != nil {
		defer func() {
			m.RecordRequest(endpoint, success)
		}()
	}

	// Step 1: Parse request body. Language is unknown until the body
	// parses, so parse errors answer in the default language.
	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Warn("Failed to parse chat request", "error", err, "requestId", requestID)
		h.writeError(c, endpoint, http.StatusBadRequest, datatypes.ErrorCodeBadRequest,
			datatypes.NormalizeLanguage(""), requestID, observability.ErrorCodeValidation)
		return
	}
	lang := datatypes.NormalizeLanguage(req.Language)

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Warn("Chat request validation failed", "error", err, "requestId", requestID)
		h.writeError(c, endpoint, http.StatusBadRequest, datatypes.ErrorCodeBadRequest,
			lang, requestID, observability.ErrorCodeValidation)
		return
	}

	// Step 2: Rate limit, keyed by user id when authenticated, else by
	// client IP.
	clientKey := middleware.UserID(c)
	if clientKey == "" {
		clientKey = c.ClientIP()
	}
	if !h.limiter.Allow(clientKey) {
		span.SetStatus(codes.Error, "rate limited")
		slog.Info("Rate limit exceeded", "client", clientKey, "requestId", requestID)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRateLimitRejection(endpoint)
		}
		h.writeError(c, endpoint, http.StatusTooManyRequests, datatypes.ErrorCodeRateLimit,
			lang, requestID, observability.ErrorCodeRateLimit)
		return
	}

	// Step 3: Sanitize the latest user input. An input that sanitizes to
	// nothing carries no question to answer.
	text := pipeline.Sanitize(req.Text())
	if text == "" {
		span.SetStatus(codes.Error, "empty message")
		h.writeError(c, endpoint, http.StatusBadRequest, datatypes.ErrorCodeBadRequest,
			lang, requestID, observability.ErrorCodeValidation)
		return
	}
	req.SetText(text)
	span.SetAttributes(
		attribute.String("chat.language", string(lang)),
		attribute.Int("chat.message_chars", len(text)),
	)

	// Step 4: Off-topic short circuit, before any privilege or context
	// work: the canned localized refusal depends only on the language. The
	// reply is a plain JSON response; no upstream call, no stream.
	userID := middleware.UserID(c)
	if pipeline.IsOffTopicQuery(text) {
		span.SetAttributes(attribute.Bool("chat.off_topic", true))
		if m := observability.DefaultMetrics; m != nil {
			m.RecordOffTopic(endpoint)
		}
		conversationID := h.ensureConversation(ctx, &req, userID, requestID)
		h.analytics.RecordEvent(conversationID, datatypes.EventResponseReceived, map[string]any{
			"request_id": requestID,
			"endpoint":   string(endpoint),
			"language":   string(lang),
			"off_topic":  true,
		})
		reply := pipeline.OffTopicReply(lang)
		if conversationID != "" {
			h.analytics.RecordMessage(conversationID, "user", text)
			h.analytics.RecordMessage(conversationID, "assistant", reply)
		}
		c.JSON(http.StatusOK, datatypes.OffTopicResponse{
			Message:   reply,
			SessionID: conversationID,
		})
		success = true
		return
	}

	// Step 5: Resolve identity and role. The middleware already resolved
	// the bearer token; privilege checks run in parallel inside Resolve.
	role := h.roles.Resolve(ctx, userID, req.UserRole)
	span.SetAttributes(attribute.String("chat.role", string(role)))

	// Step 6: Ensure a conversation row exists. Creation failure is not
	// fatal: the turn proceeds without persistence.
	conversationID := h.ensureConversation(ctx, &req, userID, requestID)

	h.analytics.RecordEvent(conversationID, datatypes.EventResponseReceived, map[string]any{
		"request_id": requestID,
		"endpoint":   string(endpoint),
		"role":       string(role),
		"language":   string(lang),
	})
	if conversationID != "" {
		h.analytics.RecordMessage(conversationID, "user", text)
	}

	// Step 7: Assemble context. Knowledge base matching and the role data
	// snapshot are independent, so they run in parallel. Both degrade to
	// empty strings on failure.
	contextStr := h.assembleContext(ctx, text, userID, role, lang)
	systemPrompt := pipeline.BuildSystemPrompt(role, contextStr, lang)

	// Step 8: Build the upstream message list. The self-hosted variant
	// carries no history on the wire; reconstruct it from the store when
	// the client threads an existing conversation.
	var stored []datatypes.StoredMessage
	if selfHosted && len(req.Messages) == 0 && req.Conversation() != "" {
		stored = h.recentHistory(ctx, req.Conversation(), requestID)
	}
	messages := buildUpstreamMessages(systemPrompt, &req, selfHosted, stored)

	var params llm.GenerationParams
	if selfHosted && req.Model != "" {
		params.Model = req.Model
	}

	// Step 9: Relay the stream.
	h.relayStream(c, ctx, endpoint, transport, relayInput{
		requestID:      requestID,
		conversationID: conversationID,
		role:           role,
		lang:           lang,
		messages:       messages,
		params:         params,
		startTime:      startTime,
	}, &success)
}

// =============================================================================
// Stream Relay
// =============================================================================

type relayInput struct {
	requestID      string
	conversationID string
	role           datatypes.UserRole
	lang           datatypes.Language
	messages       []llm.Message
	params         llm.GenerationParams
	startTime      time.Time
}

// relayStream calls the upstream transport and forwards deltas as SSE
// frames.
//
// SSE headers are deferred until the first delta arrives: upstream
// rejections before any content map to plain HTTP error responses, which is
// only possible while the response is unwritten.
func (h *chatHandler) relayStream(
	c *gin.Context,
	ctx context.Context,
	endpoint observability.Endpoint,
	transport llm.StreamTransport,
	in relayInput,
	success *bool,
) {
	streamCtx, cancel := context.WithTimeout(ctx, maxStreamDuration)
	defer cancel()

	var (
		writer        SSEWriter
		answer        strings.Builder
		firstTokenAt  time.Time
		heartbeatDone chan struct{}
	)
	stopHeartbeat := func() {
		if heartbeatDone != nil {
			close(heartbeatDone)
			heartbeatDone = nil
		}
	}
	defer stopHeartbeat()

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	onDelta := func(content string) error {
		select {
		case <-streamCtx.Done():
			return streamCtx.Err()
		default:
		}

		if writer == nil {
			SetSSEHeaders(c.Writer)
			w, err := NewSSEWriter(c.Writer)
			if err != nil {
				return fmt.Errorf("sse setup failed: %w", err)
			}
			writer = w
			firstTokenAt = time.Now()
			heartbeatDone = make(chan struct{})
			go h.runHeartbeat(streamCtx, writer, endpoint, heartbeatDone)
		}

		answer.WriteString(content)
		return writer.WriteDelta(content)
	}

	streamErr := transport.ChatStream(streamCtx, in.messages, in.params, onDelta)
	stopHeartbeat()

	if streamErr != nil {
		h.handleStreamFailure(c, endpoint, in, streamErr, writer != nil)
		return
	}

	if writer == nil {
		// Upstream finished without producing any content.
		h.handleStreamFailure(c, endpoint, in,
			fmt.Errorf("%w: empty generation", llm.ErrUpstreamUnavailable), false)
		return
	}

	if err := writer.WriteDone(); err != nil {
		slog.Warn("Failed to write done sentinel", "error", err, "requestId", in.requestID)
		return
	}

	if m := observability.DefaultMetrics; m != nil && !firstTokenAt.IsZero() {
		m.RecordTimeToFirstToken(endpoint, firstTokenAt.Sub(in.startTime).Seconds())
	}
	duration := time.Since(in.startTime)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordStreamDuration(endpoint, duration.Seconds(), true)
	}

	if in.conversationID != "" {
		h.analytics.RecordMessage(in.conversationID, "assistant", answer.String())
	}
	h.analytics.RecordEvent(in.conversationID, datatypes.EventResponseCompleted, map[string]any{
		"request_id":             in.requestID,
		"endpoint":               string(endpoint),
		"role":                   string(in.role),
		"duration_ms":            duration.Milliseconds(),
		"time_to_first_token_ms": firstTokenAt.Sub(in.startTime).Milliseconds(),
		"reply_chars":            answer.Len(),
	})

	*success = true
}

// handleStreamFailure maps an upstream error to the wire contract.
//
// Before the first delta the response is still unwritten and the error maps
// to an HTTP status with a localized envelope. After that the stream simply
// ends; clients treat a missing [DONE] as an aborted generation.
func (h *chatHandler) handleStreamFailure(
	c *gin.Context,
	endpoint observability.Endpoint,
	in relayInput,
	streamErr error,
	streaming bool,
) {
	duration := time.Since(in.startTime)

	switch {
	case errors.Is(streamErr, context.Canceled):
		slog.Info("Client disconnected mid-stream", "requestId", in.requestID,
			"duration_ms", duration.Milliseconds())
		if m := observability.DefaultMetrics; m != nil {
			m.RecordClientDisconnect(endpoint)
			m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
		}
		// Nothing is persisted for an abandoned turn.
		return

	case errors.Is(streamErr, llm.ErrUpstreamRateLimited):
		slog.Warn("Upstream rate limited", "requestId", in.requestID)
		if !streaming {
			h.writeError(c, endpoint, http.StatusTooManyRequests, datatypes.ErrorCodeRateLimit,
				in.lang, in.requestID, observability.ErrorCodeRateLimit)
		}

	case errors.Is(streamErr, llm.ErrUpstreamPaymentRequired):
		slog.Warn("Upstream quota exhausted", "requestId", in.requestID)
		if !streaming {
			h.writeError(c, endpoint, http.StatusPaymentRequired, datatypes.ErrorCodePaymentRequired,
				in.lang, in.requestID, observability.ErrorCodePaymentRequired)
		}

	default:
		slog.Error("Upstream streaming failed", "error", streamErr, "requestId", in.requestID)
		if !streaming {
			h.writeError(c, endpoint, http.StatusServiceUnavailable, datatypes.ErrorCodeGateway,
				in.lang, in.requestID, observability.ErrorCodeUpstream)
		}
	}

	if streaming {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeUpstream)
			m.RecordStreamDuration(endpoint, duration.Seconds(), false)
		}
	}

	h.analytics.RecordEvent(in.conversationID, datatypes.EventError, map[string]any{
		"request_id": in.requestID,
		"endpoint":   string(endpoint),
		"error":      streamErr.Error(),
	})
}

// =============================================================================
// Helpers
// =============================================================================

// ensureConversation returns the client-supplied conversation id, creating a
// row lazily for first turns. Returns "" when creation fails: the turn is
// served without persistence.
func (h *chatHandler) ensureConversation(
	ctx context.Context,
	req *datatypes.ChatRequest,
	userID, requestID string,
) string {
	if id := req.Conversation(); id != "" {
		return id
	}

	var owner *string
	if userID != "" {
		owner = &userID
	}
	id, err := h.conversations.CreateConversation(ctx, owner)
	if err != nil {
		slog.Warn("Failed to create conversation, serving without persistence",
			"error", err, "requestId", requestID)
		return ""
	}
	return id
}

// recentHistory reads the last turns of a threaded conversation for the
// self-hosted endpoint. Read failures degrade to no history; the turn is
// still answerable from the latest user text alone.
func (h *chatHandler) recentHistory(ctx context.Context, conversationID, requestID string) []datatypes.StoredMessage {
	stored, err := h.conversations.ListRecentMessages(ctx, conversationID, ollamaHistoryTurns)
	if err != nil {
		slog.Warn("Failed to read conversation history, serving without it",
			"error", err, "requestId", requestID)
		return nil
	}
	return stored
}

// assembleContext fetches the knowledge base match and the role data
// snapshot in parallel and joins the non-empty parts.
func (h *chatHandler) assembleContext(
	ctx context.Context,
	text, userID string,
	role datatypes.UserRole,
	lang datatypes.Language,
) string {
	var kbContext, roleContext string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kbContext = h.knowledge.RelevantContext(gctx, text, role)
		return nil
	})
	g.Go(func() error {
		roleContext = h.roleData.Snapshot(gctx, userID, role, lang)
		return nil
	})
	_ = g.Wait() // both goroutines degrade internally, never error

	parts := make([]string, 0, 2)
	if kbContext != "" {
		parts = append(parts, kbContext)
	}
	if roleContext != "" {
		parts = append(parts, roleContext)
	}
	return strings.Join(parts, "\n\n")
}

// buildUpstreamMessages assembles the system prompt plus conversation
// history. stored carries store-reconstructed turns for the message-only
// variant and is nil for the gateway. The self-hosted endpoint truncates
// history to the last turns to respect its small context window; the
// trailing user input always survives truncation.
func buildUpstreamMessages(systemPrompt string, req *datatypes.ChatRequest, selfHosted bool,
	stored []datatypes.StoredMessage) []llm.Message {

	history := make([]llm.Message, 0, len(req.Messages)+len(stored)+1)
	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	if len(history) == 0 {
		for _, m := range stored {
			if m.Content == "" {
				continue
			}
			if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
				continue
			}
			if m.Role == llm.RoleUser && m.Content == req.Message {
				// The current turn may already have landed in the store.
				continue
			}
			history = append(history, llm.Message{Role: m.Role, Content: m.Content})
		}
		history = append(history, llm.Message{Role: llm.RoleUser, Content: req.Message})
	}

	if selfHosted && len(history) > ollamaHistoryTurns {
		history = history[len(history)-ollamaHistoryTurns:]
		if history[len(history)-1].Role != llm.RoleUser {
			// Truncation must not drop the question being asked.
			history = append(history, llm.Message{Role: llm.RoleUser, Content: req.Text()})
		}
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	return messages
}

// writeError sends the localized {error, message} envelope and records the
// error metric.
func (h *chatHandler) writeError(
	c *gin.Context,
	endpoint observability.Endpoint,
	status int,
	code string,
	lang datatypes.Language,
	requestID string,
	metricCode string,
) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, metricCode)
	}
	c.JSON(status, datatypes.ErrorResponse{
		Error:     code,
		Message:   pipeline.ErrorMessage(code, lang),
		RequestID: requestID,
	})
}

// runHeartbeat sends SSE comments until the stream finishes. Comments keep
// intermediate proxies from timing out idle connections during upstream
// stalls.
func (h *chatHandler) runHeartbeat(
	ctx context.Context,
	writer SSEWriter,
	endpoint observability.Endpoint,
	done <-chan struct{},
) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		}
	}
}
