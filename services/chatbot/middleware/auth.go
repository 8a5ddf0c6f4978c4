// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the chatbot service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header
// and resolves it to a platform user id. Authentication is ADVISORY: the
// chat endpoints serve anonymous visitors, so a missing, malformed or
// invalid token never rejects the request. It only downgrades the caller to
// the visitor role.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► resolver.GetUser(ctx, token)   (failure → anonymous)
//	   │
//	   └─► Store user id in context
//	           │
//	           ▼
//	       Handler (retrieves via UserID)
package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Context Keys
// =============================================================================

// userIDKey is the context key for the resolved platform user id.
// Using a namespaced key prevents collisions with other context values.
const userIDKey = "avs_user_id"

// =============================================================================
// Interface Definition
// =============================================================================

// UserResolver resolves a bearer token to a platform user id. An empty id
// with a nil error means the token did not identify anyone.
type UserResolver interface {
	GetUser(ctx context.Context, token string) (string, error)
}

// =============================================================================
// Context Helpers
// =============================================================================

// SetUserID stores the resolved user id in the Gin context.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}

// UserID returns the resolved user id, or "" for anonymous callers.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Middleware
// =============================================================================

// AuthMiddleware resolves the optional bearer token to a user id.
//
// # Description
//
// Extracts the Authorization header, strips the Bearer prefix, and asks the
// resolver who the token belongs to. Every failure path degrades to
// anonymous rather than rejecting: visitors must be able to chat without an
// account, and an expired session should not break the widget.
//
// # Inputs
//
//   - resolver: Token-to-user resolver. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware storing the user id in the context.
func AuthMiddleware(resolver UserResolver) gin.HandlerFunc {
	if resolver == nil {
		panic("AuthMiddleware: resolver must not be nil")
	}

	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			SetUserID(c, "")
			c.Next()
			return
		}

		userID, err := resolver.GetUser(c.Request.Context(), token)
		if err != nil {
			// Advisory auth: log and continue as anonymous.
			slog.Debug("Token resolution failed, continuing as visitor", "error", err)
			SetUserID(c, "")
			c.Next()
			return
		}

		SetUserID(c, userID)
		c.Next()
	}
}

// extractBearerToken pulls the token out of an Authorization header value.
// Returns "" when the header is absent or not a Bearer scheme.
func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
