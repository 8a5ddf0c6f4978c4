// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the chatbot service.
//
// Metrics cover the streaming chat pipeline: request counters, error
// counters by code, active stream gauges, stream duration and time to first
// token histograms, rate-limit and off-topic short-circuit counters, and
// in-process cache hit/miss/refresh counters.
//
// All operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "avs"
	chatbotSubsystem = "chatbot"
)

// Endpoint labels the chat route a metric belongs to.
type Endpoint string

const (
	EndpointGatewayChat Endpoint = "gateway_chat"
	EndpointOllamaChat  Endpoint = "ollama_chat"
)

// Error code labels.
const (
	ErrorCodeValidation       = "validation"
	ErrorCodeRateLimit        = "rate_limit"
	ErrorCodePaymentRequired  = "payment_required"
	ErrorCodeUpstream         = "upstream_error"
	ErrorCodeClientDisconnect = "client_disconnect"
	ErrorCodeInternal         = "internal"
)

// Cache labels.
type Cache string

const (
	CacheKnowledge Cache = "knowledge_base"
	CacheRoleData  Cache = "role_data"
)

type CacheEvent string

const (
	CacheEventHit     CacheEvent = "hit"
	CacheEventMiss    CacheEvent = "miss"
	CacheEventRefresh CacheEvent = "refresh"
)

// ChatMetrics holds all Prometheus metrics for the chat pipeline.
type ChatMetrics struct {
	// RequestsTotal counts chat requests.
	// Labels: endpoint, status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ErrorsTotal counts errors by code.
	// Labels: endpoint, error_code
	ErrorsTotal *prometheus.CounterVec

	// RateLimitRejectionsTotal counts requests rejected by the limiter.
	// Labels: endpoint
	RateLimitRejectionsTotal *prometheus.CounterVec

	// OffTopicTotal counts off-topic short-circuits (no upstream call made).
	// Labels: endpoint
	OffTopicTotal *prometheus.CounterVec

	// ActiveStreams tracks currently open streaming responses.
	// Labels: endpoint
	ActiveStreams *prometheus.GaugeVec

	// StreamDurationSeconds measures total stream duration.
	// Labels: endpoint, status
	StreamDurationSeconds *prometheus.HistogramVec

	// TimeToFirstTokenSeconds measures latency to the first emitted token.
	// Labels: endpoint
	TimeToFirstTokenSeconds *prometheus.HistogramVec

	// KeepAlivesTotal counts keepalive frames sent during generation.
	// Labels: endpoint
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts client disconnections mid-stream.
	// Labels: endpoint
	ClientDisconnectsTotal *prometheus.CounterVec

	// CacheEventsTotal counts cache hits, misses and refreshes.
	// Labels: cache, event
	CacheEventsTotal *prometheus.CounterVec

	// AnalyticsDroppedTotal counts analytics tasks dropped because the
	// background queue was saturated.
	AnalyticsDroppedTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance, initialized by InitMetrics.
// Components nil-check it so tests run without registration.
var DefaultMetrics *ChatMetrics

// InitMetrics creates and registers all chatbot metrics. Call once at
// startup; promauto panics on duplicate registration.
func InitMetrics() *ChatMetrics {
	m := &ChatMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "requests_total",
			Help:      "Chat requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "errors_total",
			Help:      "Chat errors by endpoint and error code.",
		}, []string{"endpoint", "error_code"}),
		RateLimitRejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the sliding-window rate limiter.",
		}, []string{"endpoint"}),
		OffTopicTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "off_topic_total",
			Help:      "Messages short-circuited by the off-topic classifier.",
		}, []string{"endpoint"}),
		ActiveStreams: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "active_streams",
			Help:      "Currently open streaming responses.",
		}, []string{"endpoint"}),
		StreamDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "stream_duration_seconds",
			Help:      "Total stream duration.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"endpoint", "status"}),
		TimeToFirstTokenSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "time_to_first_token_seconds",
			Help:      "Latency from request start to first emitted token.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"endpoint"}),
		KeepAlivesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "keepalives_total",
			Help:      "Keepalive frames written during generation.",
		}, []string{"endpoint"}),
		ClientDisconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "client_disconnects_total",
			Help:      "Client disconnections during streaming.",
		}, []string{"endpoint"}),
		CacheEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "cache_events_total",
			Help:      "In-process cache hits, misses and refreshes.",
		}, []string{"cache", "event"}),
		AnalyticsDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatbotSubsystem,
			Name:      "analytics_dropped_total",
			Help:      "Analytics tasks dropped due to a saturated queue.",
		}),
	}
	DefaultMetrics = m
	return m
}

// =============================================================================
// Recording helpers
// =============================================================================

func (m *ChatMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

func (m *ChatMetrics) RecordError(endpoint Endpoint, code string) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), code).Inc()
}

func (m *ChatMetrics) RecordRateLimitRejection(endpoint Endpoint) {
	m.RateLimitRejectionsTotal.WithLabelValues(string(endpoint)).Inc()
}

func (m *ChatMetrics) RecordOffTopic(endpoint Endpoint) {
	m.OffTopicTotal.WithLabelValues(string(endpoint)).Inc()
}

func (m *ChatMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

func (m *ChatMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

func (m *ChatMetrics) RecordStreamDuration(endpoint Endpoint, seconds float64, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), status).Observe(seconds)
}

func (m *ChatMetrics) RecordTimeToFirstToken(endpoint Endpoint, seconds float64) {
	m.TimeToFirstTokenSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

func (m *ChatMetrics) RecordKeepAlive(endpoint Endpoint) {
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

func (m *ChatMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}

func (m *ChatMetrics) RecordCacheEvent(cache Cache, event CacheEvent) {
	m.CacheEventsTotal.WithLabelValues(string(cache), string(event)).Inc()
}

func (m *ChatMetrics) RecordAnalyticsDrop() {
	m.AnalyticsDroppedTotal.Inc()
}
