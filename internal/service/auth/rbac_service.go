package auth

import (
	"context"

	"go.uber.org/zap"
)

// Permission represents a single resource-action pair.
type Permission struct {
	Resource string
	Action   string
}

const (
	ResourceVoice   = "voice"
	ResourceHistory = "history"
	ResourceSession = "session"

	ActionRead   = "read"
	ActionWrite  = "write"
	ActionManage = "manage"
)

// RBACService maps roles to their allowed permissions.
//
// Roles:
//   - "admin": everything a user can do, plus reading any user's history
//     and clearing any user's session
//   - "user": submit turns and read or reset their own session
type RBACService struct {
	permissions map[string][]Permission
	log         *zap.Logger
}

func NewRBACService(log *zap.Logger) *RBACService {
	user := []Permission{
		{Resource: ResourceVoice, Action: ActionWrite},
		{Resource: ResourceHistory, Action: ActionRead},
		{Resource: ResourceSession, Action: ActionRead},
		{Resource: ResourceSession, Action: ActionWrite},
	}
	admin := append([]Permission{
		{Resource: ResourceHistory, Action: ActionManage},
		{Resource: ResourceSession, Action: ActionManage},
	}, user...)

	permissions := map[string][]Permission{
		"admin": admin,
		"user":  user,
	}

	log.Info("RBAC service initialized",
		zap.Int("roles", len(permissions)),
	)

	return &RBACService{
		permissions: permissions,
		log:         log,
	}
}

// CheckPermission verifies whether the given role has permission to perform
// the specified action on the specified resource.
func (s *RBACService) CheckPermission(ctx context.Context, role, resource, action string) bool {
	perms, exists := s.permissions[role]
	if !exists {
		s.log.Warn("unknown role attempted access",
			zap.String("role", role),
			zap.String("resource", resource),
			zap.String("action", action),
		)
		return false
	}

	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return true
		}
	}

	s.log.Warn("permission denied",
		zap.String("role", role),
		zap.String("resource", resource),
		zap.String("action", action),
	)
	return false
}

// GetPermissions returns all permissions assigned to the given role.
// Returns nil if the role does not exist.
func (s *RBACService) GetPermissions(role string) []Permission {
	perms, exists := s.permissions[role]
	if !exists {
		return nil
	}

	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
