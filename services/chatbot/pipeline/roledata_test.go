// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
)

// mockRoleSource is an in-memory RoleDataSource with per-method call
// counters so cache behavior is observable.
type mockRoleSource struct {
	courses     []datatypes.Course
	enrollments []datatypes.Enrollment
	grades      []datatypes.Grade
	assignments []datatypes.TeachingAssignment
	err         error

	courseCalls int
	countCalls  int
}

func (m *mockRoleSource) ListPublishedCourses(_ context.Context, _ int) ([]datatypes.Course, error) {
	m.courseCalls++
	return m.courses, m.err
}

func (m *mockRoleSource) ListCoursesWithStatus(_ context.Context, _ int) ([]datatypes.Course, error) {
	m.courseCalls++
	return m.courses, m.err
}

func (m *mockRoleSource) ListEnrollments(_ context.Context, _ string, _ int) ([]datatypes.Enrollment, error) {
	return m.enrollments, m.err
}

func (m *mockRoleSource) ListRecentGrades(_ context.Context, _ string, _ int) ([]datatypes.Grade, error) {
	return m.grades, m.err
}

func (m *mockRoleSource) GetProfessorID(_ context.Context, _ string) (string, error) {
	return "prof-1", m.err
}

func (m *mockRoleSource) ListTeachingAssignments(_ context.Context, _ string, _ int) ([]datatypes.TeachingAssignment, error) {
	return m.assignments, m.err
}

func (m *mockRoleSource) CountCourses(_ context.Context) (int, error) {
	m.countCalls++
	return 12, m.err
}

func (m *mockRoleSource) CountStudents(_ context.Context) (int, error) {
	m.countCalls++
	return 340, m.err
}

func (m *mockRoleSource) CountProfessors(_ context.Context) (int, error) {
	m.countCalls++
	return 18, m.err
}

func TestNewRoleData_PanicsOnNilSource(t *testing.T) {
	assert.Panics(t, func() { NewRoleData(nil) })
}

func TestRoleData_VisitorSnapshotListsCourses(t *testing.T) {
	source := &mockRoleSource{courses: []datatypes.Course{
		{Title: "Développement Web", Subtitle: "Full-stack", Duration: "6 mois", ModuleCount: 12},
		{Title: "Data Science"},
	}}
	rd := NewRoleData(source)

	snapshot := rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)

	assert.Contains(t, snapshot, "Formations disponibles:")
	assert.Contains(t, snapshot, "- Développement Web — Full-stack (6 mois, 12 modules)")
	assert.Contains(t, snapshot, "- Data Science")
}

func TestRoleData_StudentSnapshotIncludesEnrollmentsAndGrades(t *testing.T) {
	source := &mockRoleSource{
		courses:     []datatypes.Course{{Title: "Marketing Digital"}},
		enrollments: []datatypes.Enrollment{{CourseTitle: "Marketing Digital", Progress: 62}},
		grades:      []datatypes.Grade{{AssignmentTitle: "Quiz 3", Score: 15.5, MaxScore: 20}},
	}
	rd := NewRoleData(source)

	snapshot := rd.Snapshot(context.Background(), "user-1", datatypes.RoleStudent, datatypes.LanguageFrench)

	assert.Contains(t, snapshot, "Vos inscriptions en cours:\n- Marketing Digital: 62%")
	assert.Contains(t, snapshot, "Vos dernières notes:\n- Quiz 3: 15.5/20")
}

func TestRoleData_ProfessorSnapshotListsClasses(t *testing.T) {
	source := &mockRoleSource{assignments: []datatypes.TeachingAssignment{
		{ClassName: "Web Dev A", CurrentStudents: 24, MaxStudents: 30},
	}}
	rd := NewRoleData(source)

	snapshot := rd.Snapshot(context.Background(), "user-1", datatypes.RoleProfessor, datatypes.LanguageEnglish)

	assert.Contains(t, snapshot, "Your classes:\n- Web Dev A (24/30)")
}

func TestRoleData_AdminSnapshotHasStatsAndStatuses(t *testing.T) {
	source := &mockRoleSource{courses: []datatypes.Course{
		{Title: "Cybersécurité", Status: "published"},
	}}
	rd := NewRoleData(source)

	snapshot := rd.Snapshot(context.Background(), "user-1", datatypes.RoleAdmin, datatypes.LanguageEnglish)

	assert.Contains(t, snapshot, "Platform statistics:")
	assert.Contains(t, snapshot, "- Courses: 12")
	assert.Contains(t, snapshot, "- Students: 340")
	assert.Contains(t, snapshot, "- Professors: 18")
	assert.Contains(t, snapshot, "- Cybersécurité [published]")
	assert.Equal(t, 3, source.countCalls)
}

func TestRoleData_CachesWithinTTL(t *testing.T) {
	source := &mockRoleSource{courses: []datatypes.Course{{Title: "Data Science"}}}
	rd := NewRoleData(source)

	first := rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)
	second := rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.courseCalls, "second snapshot should be served from cache")
}

func TestRoleData_ReassemblesAfterTTL(t *testing.T) {
	source := &mockRoleSource{courses: []datatypes.Course{{Title: "Data Science"}}}
	rd := NewRoleData(source)

	base := time.Now()
	rd.now = func() time.Time { return base }
	rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)

	rd.now = func() time.Time { return base.Add(61 * time.Second) }
	rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)

	assert.Equal(t, 2, source.courseCalls)
}

func TestRoleData_KeysAreScopedPerUserRoleAndLanguage(t *testing.T) {
	source := &mockRoleSource{courses: []datatypes.Course{{Title: "Data Science"}}}
	rd := NewRoleData(source)

	rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)
	rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageEnglish)

	assert.Equal(t, 2, source.courseCalls, "different languages must not share cache entries")
}

func TestRoleData_FailureYieldsEmptyAndIsNotCached(t *testing.T) {
	source := &mockRoleSource{err: errors.New("backend down")}
	rd := NewRoleData(source)

	snapshot := rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)
	require.Empty(t, snapshot)

	// The backend recovers; the next turn must retry instead of serving a
	// cached empty snapshot.
	source.err = nil
	source.courses = []datatypes.Course{{Title: "Data Science"}}
	snapshot = rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)

	assert.Contains(t, snapshot, "Data Science")
	assert.Equal(t, 2, source.courseCalls)
}

func TestRoleData_SnapshotIsCapped(t *testing.T) {
	courses := make([]datatypes.Course, 5)
	for i := range courses {
		courses[i] = datatypes.Course{Title: strings.Repeat("x", 400)}
	}
	rd := NewRoleData(&mockRoleSource{courses: courses})

	snapshot := rd.Snapshot(context.Background(), "", datatypes.RoleVisitor, datatypes.LanguageFrench)

	assert.LessOrEqual(t, len([]rune(snapshot)), 1200)
}
