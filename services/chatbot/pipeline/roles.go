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

	"golang.org/x/sync/errgroup"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
)

// PrivilegeChecker is the backend surface the role resolver needs.
type PrivilegeChecker interface {
	CheckIsAdmin(ctx context.Context, userID string) (bool, error)
	CheckIsProfessor(ctx context.Context, userID string) (bool, error)
}

// RoleResolver classifies the caller as admin, professor, student or
// visitor.
//
// Priority on success is admin > professor > student: an authenticated user
// with neither privilege is assumed to be an enrolled student. There is no
// separate verified-student check; that simplification is inherited from the
// platform's authorization model.
//
// TrustClientRole gates the client-declared role hint. It defaults to off:
// a declared role is then ignored and re-verified against backend privilege
// checks. Turning it on is only safe when every caller is a trusted internal
// service, because the hint is not re-validated in that path.
type RoleResolver struct {
	checker         PrivilegeChecker
	trustClientRole bool
}

// NewRoleResolver builds a resolver.
func NewRoleResolver(checker PrivilegeChecker, trustClientRole bool) *RoleResolver {
	if checker == nil {
		panic("NewRoleResolver: checker must not be nil")
	}
	return &RoleResolver{checker: checker, trustClientRole: trustClientRole}
}

// Resolve determines the caller's role. declared is the raw client-supplied
// role hint and may be empty. An empty userID is always a visitor with no
// backend call. Privilege-check errors degrade to visitor rather than
// failing the request: role is personalization, not a gate.
func (r *RoleResolver) Resolve(ctx context.Context, userID, declared string) datatypes.UserRole {
	if declared != "" {
		if role, ok := datatypes.ParseUserRole(declared); ok && r.trustClientRole {
			slog.Debug("Using client-declared role", "role", role)
			return role
		}
	}

	if userID == "" {
		return datatypes.RoleVisitor
	}

	var isAdmin, isProfessor bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		isAdmin, err = r.checker.CheckIsAdmin(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		isProfessor, err = r.checker.CheckIsProfessor(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Warn("Privilege check failed, falling back to visitor",
			"error", err, "userId", userID)
		return datatypes.RoleVisitor
	}

	switch {
	case isAdmin:
		return datatypes.RoleAdmin
	case isProfessor:
		return datatypes.RoleProfessor
	default:
		return datatypes.RoleStudent
	}
}
