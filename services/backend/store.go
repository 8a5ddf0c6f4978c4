// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
)

// Store exposes the typed table and RPC operations the chatbot needs over a
// raw Client. Table and function names match the backend project schema.
type Store struct {
	client *Client
}

// NewStore wraps a Client.
func NewStore(client *Client) *Store {
	if client == nil {
		panic("NewStore: client must not be nil")
	}
	return &Store{client: client}
}

// GetUser resolves a bearer token to a user id. Part of the auth surface,
// re-exported so the middleware depends on Store only.
func (s *Store) GetUser(ctx context.Context, token string) (string, error) {
	return s.client.GetUser(ctx, token)
}

// =============================================================================
// Privilege checks
// =============================================================================

// CheckIsAdmin asks the backend whether the user holds the admin role.
func (s *Store) CheckIsAdmin(ctx context.Context, userID string) (bool, error) {
	var isAdmin bool
	if err := s.client.Rpc(ctx, "is_admin", map[string]any{"check_user_id": userID}, &isAdmin); err != nil {
		return false, fmt.Errorf("is_admin check failed: %w", err)
	}
	return isAdmin, nil
}

// CheckIsProfessor asks the backend whether the user holds the professor role.
func (s *Store) CheckIsProfessor(ctx context.Context, userID string) (bool, error) {
	var isProfessor bool
	if err := s.client.Rpc(ctx, "is_professor", map[string]any{"check_user_id": userID}, &isProfessor); err != nil {
		return false, fmt.Errorf("is_professor check failed: %w", err)
	}
	return isProfessor, nil
}

// =============================================================================
// Knowledge base
// =============================================================================

// ListKnowledgeBase reads up to limit active knowledge-base rows, highest
// priority first.
func (s *Store) ListKnowledgeBase(ctx context.Context, limit int) ([]datatypes.KnowledgeBaseEntry, error) {
	q := url.Values{}
	q.Set("select", "content,category,keywords,priority,role_access")
	q.Set("is_active", "eq.true")
	q.Set("order", "priority.desc")
	q.Set("limit", strconv.Itoa(limit))

	var entries []datatypes.KnowledgeBaseEntry
	if err := s.client.Select(ctx, "chatbot_knowledge_base", q, &entries); err != nil {
		return nil, fmt.Errorf("knowledge base read failed: %w", err)
	}
	return entries, nil
}

// =============================================================================
// Role data
// =============================================================================

// ListPublishedCourses reads up to limit published courses, newest first.
func (s *Store) ListPublishedCourses(ctx context.Context, limit int) ([]datatypes.Course, error) {
	q := url.Values{}
	q.Set("select", "id,title,subtitle,duration,module_count,status")
	q.Set("status", "eq.published")
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))

	var courses []datatypes.Course
	if err := s.client.Select(ctx, "courses", q, &courses); err != nil {
		return nil, fmt.Errorf("course list read failed: %w", err)
	}
	return courses, nil
}

// ListCoursesWithStatus reads up to limit courses regardless of status,
// for the admin overview block.
func (s *Store) ListCoursesWithStatus(ctx context.Context, limit int) ([]datatypes.Course, error) {
	q := url.Values{}
	q.Set("select", "id,title,subtitle,duration,module_count,status")
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))

	var courses []datatypes.Course
	if err := s.client.Select(ctx, "courses", q, &courses); err != nil {
		return nil, fmt.Errorf("course status read failed: %w", err)
	}
	return courses, nil
}

// ListEnrollments reads up to limit active enrollments for a student.
func (s *Store) ListEnrollments(ctx context.Context, userID string, limit int) ([]datatypes.Enrollment, error) {
	q := url.Values{}
	q.Set("select", "course_title,progress,status")
	q.Set("user_id", "eq."+userID)
	q.Set("status", "eq.active")
	q.Set("limit", strconv.Itoa(limit))

	var enrollments []datatypes.Enrollment
	if err := s.client.Select(ctx, "course_enrollments", q, &enrollments); err != nil {
		return nil, fmt.Errorf("enrollment read failed: %w", err)
	}
	return enrollments, nil
}

// ListRecentGrades reads the most recently graded assignments for a student.
func (s *Store) ListRecentGrades(ctx context.Context, userID string, limit int) ([]datatypes.Grade, error) {
	q := url.Values{}
	q.Set("select", "assignment_title,score,max_score,graded_at")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "graded_at.desc")
	q.Set("limit", strconv.Itoa(limit))

	var grades []datatypes.Grade
	if err := s.client.Select(ctx, "assignment_grades", q, &grades); err != nil {
		return nil, fmt.Errorf("grade read failed: %w", err)
	}
	return grades, nil
}

// GetProfessorID resolves the internal professor record id for a user.
func (s *Store) GetProfessorID(ctx context.Context, userID string) (string, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("user_id", "eq."+userID)
	q.Set("limit", "1")

	var rows []struct {
		ID string `json:"id"`
	}
	if err := s.client.Select(ctx, "professors", q, &rows); err != nil {
		return "", fmt.Errorf("professor lookup failed: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no professor record for user %s", userID)
	}
	return rows[0].ID, nil
}

// ListTeachingAssignments reads up to limit classes for a professor record.
func (s *Store) ListTeachingAssignments(ctx context.Context, professorID string, limit int) ([]datatypes.TeachingAssignment, error) {
	q := url.Values{}
	q.Set("select", "class_name,current_students,max_students")
	q.Set("professor_id", "eq."+professorID)
	q.Set("limit", strconv.Itoa(limit))

	var assignments []datatypes.TeachingAssignment
	if err := s.client.Select(ctx, "teaching_assignments", q, &assignments); err != nil {
		return nil, fmt.Errorf("teaching assignment read failed: %w", err)
	}
	return assignments, nil
}

// CountCourses counts all course rows.
func (s *Store) CountCourses(ctx context.Context) (int, error) {
	return s.client.Count(ctx, "courses", nil)
}

// CountStudents counts users holding the student role.
func (s *Store) CountStudents(ctx context.Context) (int, error) {
	q := url.Values{}
	q.Set("role", "eq.student")
	return s.client.Count(ctx, "user_roles", q)
}

// CountProfessors counts professor records.
func (s *Store) CountProfessors(ctx context.Context) (int, error) {
	return s.client.Count(ctx, "professors", nil)
}

// =============================================================================
// Conversations and messages
// =============================================================================

// CreateConversation inserts a new conversation and returns its id.
// userID is nil for anonymous visitors.
func (s *Store) CreateConversation(ctx context.Context, userID *string) (string, error) {
	row := map[string]any{"user_id": userID}
	var created []datatypes.Conversation
	if err := s.client.Insert(ctx, "chatbot_conversations", row, &created); err != nil {
		return "", fmt.Errorf("conversation insert failed: %w", err)
	}
	if len(created) == 0 {
		return "", fmt.Errorf("conversation insert returned no row")
	}
	return created[0].ID, nil
}

// TouchConversation refreshes a conversation's updated_at.
func (s *Store) TouchConversation(ctx context.Context, conversationID string) error {
	q := url.Values{}
	q.Set("id", "eq."+conversationID)
	patch := map[string]any{"updated_at": time.Now().UTC().Format(time.RFC3339)}
	if err := s.client.Update(ctx, "chatbot_conversations", q, patch); err != nil {
		return fmt.Errorf("conversation touch failed: %w", err)
	}
	return nil
}

// InsertMessage appends one turn to a conversation.
func (s *Store) InsertMessage(ctx context.Context, conversationID, role, content string) error {
	row := datatypes.StoredMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	if err := s.client.Insert(ctx, "chatbot_messages", row, nil); err != nil {
		return fmt.Errorf("message insert failed: %w", err)
	}
	return nil
}

// ListRecentMessages reads the most recent turns of a conversation, oldest
// first, for short-term model context.
func (s *Store) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]datatypes.StoredMessage, error) {
	q := url.Values{}
	q.Set("select", "role,content,created_at")
	q.Set("conversation_id", "eq."+conversationID)
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))

	var messages []datatypes.StoredMessage
	if err := s.client.Select(ctx, "chatbot_messages", q, &messages); err != nil {
		return nil, fmt.Errorf("recent message read failed: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// InsertAnalytics appends one analytics event row.
func (s *Store) InsertAnalytics(ctx context.Context, ev datatypes.AnalyticsEvent) error {
	if err := s.client.Insert(ctx, "chatbot_analytics", ev, nil); err != nil {
		return fmt.Errorf("analytics insert failed: %w", err)
	}
	return nil
}
