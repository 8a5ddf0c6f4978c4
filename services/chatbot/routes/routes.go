// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/handlers"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/middleware"
)

// SetupRoutes registers the chatbot HTTP surface on the router.
//
// The auth middleware only applies to the chat endpoints: health and
// metrics must answer without a backend round trip.
func SetupRoutes(router *gin.Engine, chat handlers.ChatHandler,
	resolver middleware.UserResolver, enableMetrics bool) {

	router.GET("/health", handlers.HealthCheck)
	if enableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(resolver))
	{
		v1.POST("/chat", chat.HandleGatewayChat)
		v1.POST("/ollama-chat", chat.HandleOllamaChat)
	}
}
