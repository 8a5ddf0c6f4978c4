// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chatbot assembles and runs the AVS assistant service.
//
// The service exposes two streaming chat endpoints backed by different
// upstream models, plus health and metrics. All request processing lives in
// the pipeline, handlers and llm packages; this package only wires them
// together and owns the process lifecycle.
package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/analytics"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/backend"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/handlers"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/observability"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/pipeline"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/routes"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the chatbot service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the service configuration. Zero values use defaults.
type Config struct {
	// Port is the HTTP server port. Default: 8090
	Port int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "avs-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// AllowedOrigins lists the CORS origins allowed to call the API.
	// Default: all origins (the widget is embedded on public pages).
	AllowedOrigins []string

	// RateLimit is the number of requests allowed per client per window.
	// Default: 10
	RateLimit int

	// RateWindow is the sliding rate limit window. Default: 60s
	RateWindow time.Duration

	// TrustClientRole honors the client-declared role hint instead of
	// re-resolving privileges against the backend. Off by default; only
	// enable behind a trusted frontend.
	TrustClientRole bool

	// AnalyticsQueueSize bounds the background persistence queue.
	// Default: 256
	AnalyticsQueueSize int
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8090
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "avs-otel-collector:4317"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = 60 * time.Second
	}
	cfg.EnableMetrics = true
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - config: Service configuration
//   - router: Gin HTTP engine
//   - store: Platform backend store (auth, data, persistence)
//   - analytics: Background persistence writer
//   - tracerCleanup: Function to shutdown tracer on exit
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *backend.Store
	analytics     *analytics.Writer
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a chatbot Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Creates the backend store client
//  5. Creates both upstream transports (gateway + Ollama)
//  6. Builds the pipeline (rate limiter, caches, role resolver)
//  7. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run chatbot service
//   - error: Non-nil if initialization fails
//
// # Examples
//
//	svc, err := chatbot.New(chatbot.Config{Port: 8090})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// # Assumptions
//
//   - SUPABASE_URL, SUPABASE_ANON_KEY, AI_GATEWAY_URL, AI_GATEWAY_API_KEY
//     and OLLAMA_BASE_URL are set
//   - The OTel collector is reachable at the configured endpoint
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	backendClient, err := backend.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}
	s.store = backend.NewStore(backendClient)

	gateway, err := llm.NewGatewayClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gateway transport: %w", err)
	}
	ollama, err := llm.NewOllamaClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama transport: %w", err)
	}

	s.analytics = analytics.NewWriter(s.store, s.config.AnalyticsQueueSize)

	chatHandler := handlers.NewChatHandler(
		gateway,
		ollama,
		pipeline.NewRateLimiter(s.config.RateLimit, s.config.RateWindow),
		pipeline.NewRoleResolver(s.store, s.config.TrustClientRole),
		pipeline.NewKnowledgeBase(s.store),
		pipeline.NewRoleData(s.store),
		s.store,
		s.analytics,
	)

	s.initRouter(chatHandler)

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting chatbot server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chatbot-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRouter sets up the Gin HTTP router with middleware and routes.
func (s *service) initRouter(chatHandler handlers.ChatHandler) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("chatbot-service"))
	s.router.Use(cors.New(s.corsConfig()))

	routes.SetupRoutes(s.router, chatHandler, s.store, s.config.EnableMetrics)
}

// corsConfig builds the CORS policy for the embedded chat widget. The
// widget runs on the public site, so by default any origin may call the
// API; the headers list matches what the web client sends.
func (s *service) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"POST", "GET", "OPTIONS"},
		AllowHeaders: []string{
			"Authorization", "Content-Type", "Accept",
			"apikey", "x-client-info",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(s.config.AllowedOrigins) > 0 {
		cfg.AllowOrigins = s.config.AllowedOrigins
	} else {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.analytics != nil {
		s.analytics.Close()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
