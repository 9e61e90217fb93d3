package api

import (
	"context"
	"strings"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"go.uber.org/zap"
)

type UserUpdate struct {
	FullName string      `json:"fullName,omitempty"`
	Role     models.Role `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

// ListUsers returns every account without password hashes. Admin only.
func (s *BrokerService) ListUsers(ctx context.Context, p models.Principal) ([]models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

// UpdateUser lets an admin rename a user or change their role, never their own role.
func (s *BrokerService) UpdateUser(ctx context.Context, p models.Principal, id string, req UserUpdate) (*Result[models.User], error) {
	if err := requireAdmin(p); err != nil {
		return reject[models.User](err)
	}
	if err := s.validate.Struct(req); err != nil {
		return failWith[models.User](err, "", "Failed to update user")
	}

	var patch store.UserPatch
	if name := strings.TrimSpace(req.FullName); name != "" {
		patch.FullName = &name
	}
	if req.Role != "" {
		if id == p.UserId {
			return fail[models.User](CodeForbidden, "You cannot change your own role", nil)
		}
		role := req.Role
		patch.Role = &role
	}

	u, err := s.store.UpdateUser(ctx, id, patch)
	if err != nil {
		return failWith[models.User](err, "User not found", "Failed to update user")
	}

	zap.L().Info("User updated by admin",
		zap.String("user_id", u.Id),
		zap.String("admin_id", p.UserId),
		zap.String("role", string(u.Role)))
	public := u.Public()
	return ok("User updated successfully", &public)
}

// ToggleRole flips a user between the user and admin roles.
func (s *BrokerService) ToggleRole(ctx context.Context, p models.Principal, id string) (*Result[models.User], error) {
	if err := requireAdmin(p); err != nil {
		return reject[models.User](err)
	}
	u, err := s.store.GetUserById(ctx, id)
	if err != nil {
		return failWith[models.User](err, "User not found", "Failed to update user")
	}
	next := models.RoleAdmin
	if u.IsAdmin() {
		next = models.RoleUser
	}
	return s.UpdateUser(ctx, p, id, UserUpdate{Role: next})
}
