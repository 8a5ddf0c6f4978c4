// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analytics persists conversation transcripts and usage events in
// the background. Writes never block or fail a chat request: jobs go onto a
// bounded queue and a saturated queue drops the job with a metric rather
// than stalling the caller.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/observability"
)

const (
	defaultQueueSize  = 256
	defaultJobTimeout = 10 * time.Second
)

// Recorder is the slice of the platform store the writer needs.
type Recorder interface {
	TouchConversation(ctx context.Context, conversationID string) error
	InsertMessage(ctx context.Context, conversationID, role, content string) error
	InsertAnalytics(ctx context.Context, ev datatypes.AnalyticsEvent) error
}

type job func(ctx context.Context) error

// Writer runs a single background worker draining the job queue. A single
// worker keeps writes for one conversation in submission order.
type Writer struct {
	recorder   Recorder
	queue      chan job
	jobTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewWriter starts the background worker. queueSize <= 0 selects the
// default capacity. Panics if recorder is nil.
func NewWriter(recorder Recorder, queueSize int) *Writer {
	if recorder == nil {
		panic("analytics.NewWriter: recorder cannot be nil")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &Writer{
		recorder:   recorder,
		queue:      make(chan job, queueSize),
		jobTimeout: defaultJobTimeout,
		done:       make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// RecordMessage queues a transcript row for the conversation and bumps its
// updated_at timestamp.
func (w *Writer) RecordMessage(conversationID, role, content string) {
	w.enqueue("message", func(ctx context.Context) error {
		if err := w.recorder.InsertMessage(ctx, conversationID, role, content); err != nil {
			return err
		}
		return w.recorder.TouchConversation(ctx, conversationID)
	})
}

// RecordEvent queues a usage event. conversationID may be empty for events
// that happen before a conversation exists.
func (w *Writer) RecordEvent(conversationID, eventType string, payload map[string]any) {
	ev := datatypes.AnalyticsEvent{
		EventType: eventType,
		Payload:   payload,
	}
	if conversationID != "" {
		ev.ConversationID = &conversationID
	}
	w.enqueue("event", func(ctx context.Context) error {
		return w.recorder.InsertAnalytics(ctx, ev)
	})
}

// Flush blocks until every job queued before the call has been processed,
// or ctx expires. Used by tests and graceful shutdown.
func (w *Writer) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	w.enqueue("flush", func(context.Context) error {
		close(flushed)
		return nil
	})
	select {
	case <-flushed:
		return nil
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, drains the queue, and waits for the worker.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

func (w *Writer) enqueue(kind string, j job) {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.queue <- j:
	default:
		slog.Warn("Analytics queue full, dropping job", "kind", kind)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordAnalyticsDrop()
		}
	}
}

func (w *Writer) run() {
	defer w.wg.Done()
	for {
		select {
		case j := <-w.queue:
			w.execute(j)
		case <-w.done:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case j := <-w.queue:
					w.execute(j)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) execute(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()
	if err := j(ctx); err != nil {
		// Persistence is best effort. Log and move on.
		slog.Warn("Analytics write failed", "error", err)
	}
}
