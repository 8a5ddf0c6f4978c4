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
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockChecker is an in-memory PrivilegeChecker for resolver tests.
type mockChecker struct {
	admin     bool
	professor bool
	err       error

	adminCalls     int
	professorCalls int
}

func (m *mockChecker) CheckIsAdmin(_ context.Context, _ string) (bool, error) {
	m.adminCalls++
	return m.admin, m.err
}

func (m *mockChecker) CheckIsProfessor(_ context.Context, _ string) (bool, error) {
	m.professorCalls++
	return m.professor, m.err
}

func TestNewRoleResolver_PanicsOnNilChecker(t *testing.T) {
	assert.Panics(t, func() { NewRoleResolver(nil, false) })
}

func TestRoleResolver_EmptyUserIDIsVisitor(t *testing.T) {
	checker := &mockChecker{admin: true}
	resolver := NewRoleResolver(checker, false)

	role := resolver.Resolve(context.Background(), "", "")

	assert.Equal(t, "visitor", string(role))
	assert.Zero(t, checker.adminCalls, "visitors should not trigger backend calls")
	assert.Zero(t, checker.professorCalls)
}

func TestRoleResolver_TrustedDeclaredRoleSkipsChecks(t *testing.T) {
	checker := &mockChecker{}
	resolver := NewRoleResolver(checker, true)

	role := resolver.Resolve(context.Background(), "user-1", "professor")

	assert.Equal(t, "professor", string(role))
	assert.Zero(t, checker.adminCalls)
	assert.Zero(t, checker.professorCalls)
}

func TestRoleResolver_UntrustedDeclaredRoleIsVerified(t *testing.T) {
	checker := &mockChecker{admin: false, professor: false}
	resolver := NewRoleResolver(checker, false)

	// The client claims admin but the backend disagrees.
	role := resolver.Resolve(context.Background(), "user-1", "admin")

	assert.Equal(t, "student", string(role))
	assert.Equal(t, 1, checker.adminCalls)
	assert.Equal(t, 1, checker.professorCalls)
}

func TestRoleResolver_InvalidDeclaredRoleIgnoredEvenWhenTrusted(t *testing.T) {
	checker := &mockChecker{professor: true}
	resolver := NewRoleResolver(checker, true)

	role := resolver.Resolve(context.Background(), "user-1", "superuser")

	assert.Equal(t, "professor", string(role))
}

func TestRoleResolver_AdminOutranksProfessor(t *testing.T) {
	checker := &mockChecker{admin: true, professor: true}
	resolver := NewRoleResolver(checker, false)

	role := resolver.Resolve(context.Background(), "user-1", "")

	assert.Equal(t, "admin", string(role))
}

func TestRoleResolver_AuthenticatedWithoutPrivilegesIsStudent(t *testing.T) {
	resolver := NewRoleResolver(&mockChecker{}, false)

	role := resolver.Resolve(context.Background(), "user-1", "")

	assert.Equal(t, "student", string(role))
}

func TestRoleResolver_CheckerErrorDegradesToVisitor(t *testing.T) {
	checker := &mockChecker{admin: true, err: errors.New("backend down")}
	resolver := NewRoleResolver(checker, false)

	role := resolver.Resolve(context.Background(), "user-1", "")

	assert.Equal(t, "visitor", string(role))
}
