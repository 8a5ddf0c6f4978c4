// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the chatbot service.
//
// This file contains the request and response types for the two chat
// endpoints. Persistence-side records live in records.go.
package datatypes

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content
	// accepted on the wire. The sanitizer further truncates user text to
	// MaxSanitizedChars before it enters the pipeline.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100

	// MaxSanitizedChars is the post-sanitization length bound for user text.
	MaxSanitizedChars = 1000
)

// =============================================================================
// Languages
// =============================================================================

// Language selects the localized string tables used for prompts,
// canned replies and user-facing error messages.
type Language string

const (
	LanguageFrench  Language = "fr"
	LanguageArabic  Language = "ar"
	LanguageEnglish Language = "en"
)

// NormalizeLanguage maps a wire value to a supported Language.
// Unknown or empty values default to French, the platform's primary language.
func NormalizeLanguage(s string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageArabic:
		return LanguageArabic
	case LanguageEnglish:
		return LanguageEnglish
	default:
		return LanguageFrench
	}
}

// Languages lists every supported language. Prompt and locale tables must
// cover all of them; prompt_test enforces this.
func Languages() []Language {
	return []Language{LanguageFrench, LanguageArabic, LanguageEnglish}
}

// =============================================================================
// Roles
// =============================================================================

// UserRole classifies the caller for context assembly and prompt selection.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleProfessor UserRole = "professor"
	RoleStudent   UserRole = "student"
	RoleVisitor   UserRole = "visitor"
)

// ParseUserRole returns the UserRole for a wire value, or false when the
// value names no known role. It never defaults: the caller decides whether
// an unknown declared role falls back to server-side resolution.
func ParseUserRole(s string) (UserRole, bool) {
	switch UserRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleProfessor:
		return RoleProfessor, true
	case RoleStudent:
		return RoleStudent, true
	case RoleVisitor:
		return RoleVisitor, true
	default:
		return "", false
	}
}

// Roles lists every supported role.
func Roles() []UserRole {
	return []UserRole{RoleAdmin, RoleProfessor, RoleStudent, RoleVisitor}
}

// =============================================================================
// Messages
// =============================================================================

// Message is a single conversational turn as exchanged with the upstream
// model and with clients.
type Message struct {
	Role    string `json:"role" validate:"omitempty,oneof=system user assistant"`
	Content string `json:"content" validate:"maxbytes"`
}

// =============================================================================
// Chat Request
// =============================================================================

// chatValidate is the shared validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on string fields.
// Checks byte length, not rune count, to bound memory use.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// ChatRequest is the request body shared by both chat endpoints.
//
// The gateway endpoint carries the full history in Messages; the self-hosted
// endpoint carries only the latest user text in Message and the server
// reconstructs a short history from the conversation store. Exactly one of
// the two is expected per endpoint; Text() resolves the user's latest input
// either way.
//
// ConversationID and SessionID are aliases accepted for compatibility with
// both frontend variants. When neither is supplied a conversation is created
// lazily on the first turn.
type ChatRequest struct {
	Messages []Message `json:"messages" validate:"omitempty,max=100,dive"`
	Message  string    `json:"message" validate:"maxbytes"`

	// Language is normalized, never rejected: unknown values fall back to
	// French via NormalizeLanguage.
	Language       string `json:"language" validate:"omitempty,max=16"`
	ConversationID string `json:"conversationId" validate:"omitempty,uuid"`
	SessionID      string `json:"sessionId" validate:"omitempty,uuid"`

	// UserRole is a client-declared role hint. It is only honored when the
	// service runs with trust_client_role enabled; otherwise the role is
	// re-resolved against backend privilege checks.
	UserRole string `json:"userRole" validate:"omitempty,oneof=admin professor student visitor"`

	// Model overrides the default model name (self-hosted endpoint only).
	Model string `json:"model" validate:"omitempty,max=128"`
}

// Validate checks structural constraints on the request body.
func (r *ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("chat request validation failed: %w", err)
	}
	return nil
}

// Text returns the latest user input: the trailing user message of the
// history when present, else the bare message field. Empty string means the
// request carries no usable input and must be rejected with 400.
func (r *ChatRequest) Text() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return r.Message
}

// SetText replaces the latest user input with sanitized content, mirroring
// the lookup order of Text.
func (r *ChatRequest) SetText(content string) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			r.Messages[i].Content = content
			return
		}
	}
	r.Message = content
}

// Conversation returns the client-supplied conversation identifier,
// preferring conversationId over the legacy sessionId alias.
func (r *ChatRequest) Conversation() string {
	if r.ConversationID != "" {
		return r.ConversationID
	}
	return r.SessionID
}

// =============================================================================
// Error Codes
// =============================================================================

// Wire error codes returned in the {error, message} envelope.
const (
	ErrorCodeBadRequest      = "BAD_REQUEST"
	ErrorCodeRateLimit       = "RATE_LIMIT"
	ErrorCodePaymentRequired = "PAYMENT_REQUIRED"
	ErrorCodeGateway         = "GATEWAY_ERROR"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON error envelope for all non-streaming failures.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// OffTopicResponse is the non-streaming short-circuit reply for messages the
// classifier rejects: the canned localized refusal plus the conversation id
// so the client keeps threading turns.
type OffTopicResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}
