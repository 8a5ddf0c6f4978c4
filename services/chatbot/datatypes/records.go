// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Records exchanged with the backend tables. The chatbot reads and writes
// these rows but does not own their schema.

// Conversation groups the messages of one chat thread. UserID is nil for
// anonymous visitors.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is one persisted turn. Append-only: the chatbot never
// mutates or deletes message rows.
type StoredMessage struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// KnowledgeBaseEntry is one curated answer snippet. RoleAccess, when
// non-empty, restricts which roles may see the entry in assembled context.
type KnowledgeBaseEntry struct {
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Keywords   []string `json:"keywords"`
	Priority   int      `json:"priority"`
	RoleAccess []string `json:"role_access"`
}

// Analytics event types written by the chatbot.
const (
	EventResponseReceived  = "response_received"
	EventResponseCompleted = "response_completed"
	EventError             = "error"
	EventCriticalError     = "critical_error"
)

// AnalyticsEvent is one fire-and-forget analytics row. Failures to write it
// never fail the user-visible response.
type AnalyticsEvent struct {
	ConversationID *string        `json:"conversation_id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
}

// =============================================================================
// Live platform rows consumed by the role-data snapshot
// =============================================================================

// Course is a published course row as listed to visitors and students.
type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Duration    string `json:"duration"`
	ModuleCount int    `json:"module_count"`
	Status      string `json:"status"`
}

// Enrollment is one active enrollment with progress, denormalized with the
// course title by the backend view.
type Enrollment struct {
	CourseTitle string  `json:"course_title"`
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
}

// Grade is one graded assignment result.
type Grade struct {
	AssignmentTitle string    `json:"assignment_title"`
	Score           float64   `json:"score"`
	MaxScore        float64   `json:"max_score"`
	GradedAt        time.Time `json:"graded_at"`
}

// TeachingAssignment is one class a professor teaches.
type TeachingAssignment struct {
	ClassName       string `json:"class_name"`
	CurrentStudents int    `json:"current_students"`
	MaxStudents     int    `json:"max_students"`
}

// PlatformStats is the admin-facing aggregate block.
type PlatformStats struct {
	TotalCourses    int
	TotalStudents   int
	TotalProfessors int
}
