// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/observability"
)

const (
	// roleDataTTL is how long a snapshot stays servable without new
	// backend calls.
	roleDataTTL = 60 * time.Second

	// roleDataMaxChars caps the assembled snapshot.
	roleDataMaxChars = 1200

	maxListedCourses     = 5
	maxListedEnrollments = 5
	maxListedGrades      = 3
	maxListedClasses     = 5
)

// RoleDataSource is the backend surface the snapshot assembler reads from.
type RoleDataSource interface {
	ListPublishedCourses(ctx context.Context, limit int) ([]datatypes.Course, error)
	ListCoursesWithStatus(ctx context.Context, limit int) ([]datatypes.Course, error)
	ListEnrollments(ctx context.Context, userID string, limit int) ([]datatypes.Enrollment, error)
	ListRecentGrades(ctx context.Context, userID string, limit int) ([]datatypes.Grade, error)
	GetProfessorID(ctx context.Context, userID string) (string, error)
	ListTeachingAssignments(ctx context.Context, professorID string, limit int) ([]datatypes.TeachingAssignment, error)
	CountCourses(ctx context.Context) (int, error)
	CountStudents(ctx context.Context) (int, error)
	CountProfessors(ctx context.Context) (int, error)
}

type roleDataEntry struct {
	value    string
	cachedAt time.Time
}

// RoleData assembles and caches per-(user, role, language) text snapshots
// of live platform data: published courses, enrollments, grades, teaching
// load and platform statistics.
//
// Snapshots are enrichment, never required: any backend error during
// assembly is logged and yields an empty string, and nothing is cached so
// the next turn retries.
type RoleData struct {
	mu     sync.Mutex
	source RoleDataSource
	cache  map[string]roleDataEntry

	now func() time.Time
}

// NewRoleData builds an empty snapshot cache.
func NewRoleData(source RoleDataSource) *RoleData {
	if source == nil {
		panic("NewRoleData: source must not be nil")
	}
	return &RoleData{
		source: source,
		cache:  make(map[string]roleDataEntry),
		now:    time.Now,
	}
}

// Snapshot returns the cached snapshot for (userID, role, lang) when it is
// under 60 seconds old, otherwise assembles a fresh one. userID may be
// empty for visitors.
func (r *RoleData) Snapshot(ctx context.Context, userID string, role datatypes.UserRole, lang datatypes.Language) string {
	key := cacheKey(userID, role, lang)

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && r.now().Sub(entry.cachedAt) < roleDataTTL {
		r.mu.Unlock()
		if m := observability.DefaultMetrics; m != nil {
			m.RecordCacheEvent(observability.CacheRoleData, observability.CacheEventHit)
		}
		return entry.value
	}
	r.mu.Unlock()

	if m := observability.DefaultMetrics; m != nil {
		m.RecordCacheEvent(observability.CacheRoleData, observability.CacheEventMiss)
	}

	value, err := r.assemble(ctx, userID, role, lang)
	if err != nil {
		slog.Warn("Role data assembly failed, proceeding without it",
			"error", err, "role", role, "userId", userID)
		return ""
	}

	r.mu.Lock()
	r.cache[key] = roleDataEntry{value: value, cachedAt: r.now()}
	r.mu.Unlock()
	return value
}

func cacheKey(userID string, role datatypes.UserRole, lang datatypes.Language) string {
	if userID == "" {
		userID = "visitor"
	}
	return userID + "_" + string(role) + "_" + string(lang)
}

// assemble builds the snapshot sections for a role. Sections are joined
// with blank lines and the result capped at roleDataMaxChars.
func (r *RoleData) assemble(ctx context.Context, userID string, role datatypes.UserRole, lang datatypes.Language) (string, error) {
	var sections []string

	switch role {
	case datatypes.RoleVisitor, datatypes.RoleStudent:
		courses, err := r.source.ListPublishedCourses(ctx, maxListedCourses)
		if err != nil {
			return "", err
		}
		if len(courses) > 0 {
			sections = append(sections, formatCourses(courses, lang))
		}

		if role == datatypes.RoleStudent && userID != "" {
			enrollments, err := r.source.ListEnrollments(ctx, userID, maxListedEnrollments)
			if err != nil {
				return "", err
			}
			if len(enrollments) > 0 {
				sections = append(sections, formatEnrollments(enrollments, lang))
			}

			grades, err := r.source.ListRecentGrades(ctx, userID, maxListedGrades)
			if err != nil {
				return "", err
			}
			if len(grades) > 0 {
				sections = append(sections, formatGrades(grades, lang))
			}
		}

	case datatypes.RoleProfessor:
		professorID, err := r.source.GetProfessorID(ctx, userID)
		if err != nil {
			return "", err
		}
		assignments, err := r.source.ListTeachingAssignments(ctx, professorID, maxListedClasses)
		if err != nil {
			return "", err
		}
		if len(assignments) > 0 {
			sections = append(sections, formatTeaching(assignments, lang))
		}

	case datatypes.RoleAdmin:
		stats, err := r.collectStats(ctx)
		if err != nil {
			return "", err
		}
		sections = append(sections, formatStats(stats, lang))

		courses, err := r.source.ListCoursesWithStatus(ctx, maxListedCourses)
		if err != nil {
			return "", err
		}
		if len(courses) > 0 {
			sections = append(sections, formatCourseStatuses(courses, lang))
		}
	}

	joined := strings.Join(sections, "\n\n")
	if runes := []rune(joined); len(runes) > roleDataMaxChars {
		joined = string(runes[:roleDataMaxChars])
	}
	return joined, nil
}

// collectStats issues the three admin counts concurrently.
func (r *RoleData) collectStats(ctx context.Context) (datatypes.PlatformStats, error) {
	var stats datatypes.PlatformStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TotalCourses, err = r.source.CountCourses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TotalStudents, err = r.source.CountStudents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TotalProfessors, err = r.source.CountProfessors(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return datatypes.PlatformStats{}, err
	}
	return stats, nil
}

func formatCourses(courses []datatypes.Course, lang datatypes.Language) string {
	var b strings.Builder
	b.WriteString(coursesHeaders[lang])
	for _, c := range courses {
		b.WriteString("\n- ")
		b.WriteString(c.Title)
		if c.Subtitle != "" {
			b.WriteString(" — ")
			b.WriteString(c.Subtitle)
		}
		if c.Duration != "" {
			fmt.Fprintf(&b, " (%s, %d modules)", c.Duration, c.ModuleCount)
		}
	}
	return b.String()
}

func formatCourseStatuses(courses []datatypes.Course, lang datatypes.Language) string {
	var b strings.Builder
	b.WriteString(coursesHeaders[lang])
	for _, c := range courses {
		fmt.Fprintf(&b, "\n- %s [%s]", c.Title, c.Status)
	}
	return b.String()
}

func formatEnrollments(enrollments []datatypes.Enrollment, lang datatypes.Language) string {
	var b strings.Builder
	b.WriteString(enrollmentsHeaders[lang])
	for _, e := range enrollments {
		fmt.Fprintf(&b, "\n- %s: %.0f%%", e.CourseTitle, e.Progress)
	}
	return b.String()
}

func formatGrades(grades []datatypes.Grade, lang datatypes.Language) string {
	var b strings.Builder
	b.WriteString(gradesHeaders[lang])
	for _, g := range grades {
		fmt.Fprintf(&b, "\n- %s: %.1f/%.0f", g.AssignmentTitle, g.Score, g.MaxScore)
	}
	return b.String()
}

func formatTeaching(assignments []datatypes.TeachingAssignment, lang datatypes.Language) string {
	var b strings.Builder
	b.WriteString(teachingHeaders[lang])
	for _, a := range assignments {
		fmt.Fprintf(&b, "\n- %s (%d/%d)", a.ClassName, a.CurrentStudents, a.MaxStudents)
	}
	return b.String()
}

var statLineFormats = map[datatypes.Language]string{
	datatypes.LanguageFrench:  "\n- Formations: %d\n- Étudiants: %d\n- Professeurs: %d",
	datatypes.LanguageArabic:  "\n- الدورات: %d\n- الطلاب: %d\n- الأساتذة: %d",
	datatypes.LanguageEnglish: "\n- Courses: %d\n- Students: %d\n- Professors: %d",
}

func formatStats(stats datatypes.PlatformStats, lang datatypes.Language) string {
	var b strings.Builder
	b.WriteString(statsHeaders[lang])
	fmt.Fprintf(&b, statLineFormats[lang],
		stats.TotalCourses, stats.TotalStudents, stats.TotalProfessors)
	return b.String()
}
