// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/observability"
)

const (
	// knowledgeRefreshInterval bounds cache staleness: a non-trivial query
	// never sees entries older than this.
	knowledgeRefreshInterval = 5 * time.Minute

	// knowledgeMaxRows caps how many rows one refresh loads.
	knowledgeMaxRows = 100

	// knowledgeMaxKeywords caps keyword tokens extracted from the message.
	knowledgeMaxKeywords = 10

	// knowledgeMaxMatches caps matched entries included in the context.
	knowledgeMaxMatches = 2

	// knowledgeMaxChars caps the joined context block.
	knowledgeMaxChars = 400
)

// simpleMessagePattern matches greetings, thanks, short yes/no turns and
// closings: turns not worth a context lookup.
var simpleMessagePattern = regexp.MustCompile(`(?i)^\s*(bonjour|salut|bonsoir|coucou|hello|hi|hey|salam|مرحبا|السلام عليكم|merci( beaucoup)?|thanks|thank you|شكرا|oui|non|yes|no|ok|okay|d'accord|bye|au revoir|à bientôt|bonne journée|مع السلامة)[\s!.?،]*$`)

// KnowledgeSource is the backend surface the knowledge cache reads from.
type KnowledgeSource interface {
	ListKnowledgeBase(ctx context.Context, limit int) ([]datatypes.KnowledgeBaseEntry, error)
}

// KnowledgeBase keyword-matches user messages against a periodically
// refreshed in-memory copy of the knowledge base table.
//
// The cache is refreshed synchronously when empty or older than the refresh
// interval; a failed refresh is logged and leaves the previous (possibly
// empty) entries in place so the pipeline degrades to empty context instead
// of failing the turn.
//
// The mutex makes the cache safe on a multi-threaded runtime; refreshes
// under the lock are a deliberate trade: one slow reload blocks concurrent
// lookups rather than stampeding the backend.
type KnowledgeBase struct {
	mu          sync.Mutex
	source      KnowledgeSource
	entries     []datatypes.KnowledgeBaseEntry
	refreshedAt time.Time

	now func() time.Time
}

// NewKnowledgeBase builds an empty cache; the first non-trivial query
// triggers a synchronous load.
func NewKnowledgeBase(source KnowledgeSource) *KnowledgeBase {
	if source == nil {
		panic("NewKnowledgeBase: source must not be nil")
	}
	return &KnowledgeBase{source: source, now: time.Now}
}

// RelevantContext returns up to knowledgeMaxMatches entries matching the
// message, formatted as "[category] content" blocks, truncated to
// knowledgeMaxChars. Empty string is the normal result for trivial
// messages, no keywords or no matches; it is never an error.
func (k *KnowledgeBase) RelevantContext(ctx context.Context, message string, role datatypes.UserRole) string {
	if simpleMessagePattern.MatchString(message) || len(strings.Fields(message)) <= 3 {
		return ""
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.entries) == 0 || k.now().Sub(k.refreshedAt) > knowledgeRefreshInterval {
		k.refreshLocked(ctx)
	}

	keywords := extractKeywords(message, knowledgeMaxKeywords)
	if len(keywords) == 0 {
		return ""
	}

	var blocks []string
	for _, entry := range k.entries {
		if len(blocks) >= knowledgeMaxMatches {
			break
		}
		if !roleAllowed(entry.RoleAccess, role) {
			continue
		}
		content := strings.ToLower(entry.Content)
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				blocks = append(blocks, "["+entry.Category+"] "+entry.Content)
				break
			}
		}
	}
	if len(blocks) == 0 {
		return ""
	}

	joined := strings.Join(blocks, "\n")
	if runes := []rune(joined); len(runes) > knowledgeMaxChars {
		joined = string(runes[:knowledgeMaxChars])
	}
	return joined
}

// Refresh forces a synchronous reload. Used at warmup and by tests.
func (k *KnowledgeBase) Refresh(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.refreshLocked(ctx)
}

func (k *KnowledgeBase) refreshLocked(ctx context.Context) {
	entries, err := k.source.ListKnowledgeBase(ctx, knowledgeMaxRows)
	if err != nil {
		slog.Warn("Knowledge base refresh failed, keeping cached entries",
			"error", err, "cached", len(k.entries))
		return
	}
	k.entries = entries
	k.refreshedAt = k.now()
	if m := observability.DefaultMetrics; m != nil {
		m.RecordCacheEvent(observability.CacheKnowledge, observability.CacheEventRefresh)
	}
	slog.Debug("Knowledge base refreshed", "entries", len(entries))
}

// extractKeywords lower-cases the message and returns up to max words
// longer than 3 characters, in order of appearance.
func extractKeywords(message string, max int) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(message)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if len([]rune(word)) > 3 {
			keywords = append(keywords, word)
			if len(keywords) >= max {
				break
			}
		}
	}
	return keywords
}

// roleAllowed reports whether an entry's access list admits the role.
// An empty list admits everyone.
func roleAllowed(access []string, role datatypes.UserRole) bool {
	return len(access) == 0 || slices.Contains(access, string(role))
}
