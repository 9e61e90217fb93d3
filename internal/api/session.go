package api

import (
	"context"
	"errors"
	"strings"

	"brokerdesk-go/internal/auth"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"go.uber.org/zap"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,broker_email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required"`
}

type ProfileUpdate struct {
	FullName    string `json:"fullName,omitempty"`
	NewPassword string `json:"newPassword,omitempty" validate:"omitempty,min=6"`
}

// Register creates a regular user with zero balances and pending KYC.
func (s *BrokerService) Register(ctx context.Context, req RegisterRequest) (*Result[models.User], error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validate.Struct(req); err != nil {
		return failWith[models.User](err, "", "Registration failed")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return failWith[models.User](err, "", "Registration failed")
	}

	u, err := s.store.CreateUser(ctx, store.CreateUserParams{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         models.RoleUser,
		KycStatus:    models.KycPending,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return failWith[models.User](err, "", "Registration failed")
	}

	zap.L().Info("User registered", zap.String("user_id", u.Id), zap.String("email", u.Email))
	public := u.Public()
	return ok("Registration successful", &public)
}

// Login verifies the password and issues a session token recorded in the store.
func (s *BrokerService) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	failed := func(code Code, msg string, cause error) (*models.LoginResult, error) {
		return &models.LoginResult{ActionResult: models.ActionResult{Message: msg}},
			&Error{Code: code, Message: msg, Err: cause}
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return failed(CodeUnauthenticated, "User not found", err)
	}
	if err != nil {
		zap.L().Error("Login lookup failed", zap.Error(err))
		return failed(CodeInternal, "Login failed", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		zap.L().Info("Login rejected", zap.String("user_id", u.Id))
		return failed(CodeUnauthenticated, "Incorrect password", err)
	}

	token, sess, err := s.tokens.Issue(u)
	if err != nil {
		return failed(CodeInternal, "Login failed", err)
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		zap.L().Error("Failed to save session", zap.Error(err))
		return failed(CodeInternal, "Login failed", err)
	}

	zap.L().Info("User logged in", zap.String("user_id", u.Id), zap.String("session_id", sess.Id))
	public := u.Public()
	return &models.LoginResult{
		ActionResult: models.ActionResult{Success: true, Message: "Login successful"},
		Token:        token,
		User:         &public,
	}, nil
}

// Logout revokes the principal's session.
func (s *BrokerService) Logout(ctx context.Context, p models.Principal) error {
	if p.SessionId == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, p.SessionId); err != nil {
		return &Error{Code: CodeInternal, Message: "Logout failed", Err: err}
	}
	return nil
}

// Authenticate resolves a bearer token to a principal. The role comes from the stored
// user so role changes apply to existing sessions.
func (s *BrokerService) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	unauth := func(cause error) (models.Principal, error) {
		return models.Principal{}, &Error{Code: CodeUnauthenticated, Message: "Not authenticated", Err: cause}
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return unauth(err)
	}
	sess, err := s.store.GetSession(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return unauth(auth.ErrInvalidToken)
	}
	if err != nil {
		return models.Principal{}, &Error{Code: CodeInternal, Message: "Session lookup failed", Err: err}
	}
	if sess.UserId != claims.Subject || sess.Expired(s.now()) {
		return unauth(auth.ErrInvalidToken)
	}
	u, err := s.store.GetUserById(ctx, sess.UserId)
	if err != nil {
		return unauth(err)
	}
	return models.Principal{UserId: u.Id, Role: u.Role, SessionId: sess.Id}, nil
}

func (s *BrokerService) CurrentUser(ctx context.Context, p models.Principal) (*models.User, error) {
	u, err := s.actor(ctx, p)
	if err != nil {
		return nil, err
	}
	public := u.Public()
	return &public, nil
}

// UpdateProfile changes the caller's display name and, when given, their password.
func (s *BrokerService) UpdateProfile(ctx context.Context, p models.Principal, req ProfileUpdate) (*Result[models.User], error) {
	if err := requireUser(p); err != nil {
		return reject[models.User](err)
	}
	if err := s.validate.Struct(req); err != nil {
		return failWith[models.User](err, "", "Update failed")
	}

	var patch store.UserPatch
	if name := strings.TrimSpace(req.FullName); name != "" {
		patch.FullName = &name
	}
	if req.NewPassword != "" {
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			return failWith[models.User](err, "", "Update failed")
		}
		patch.PasswordHash = &hash
	}

	u, err := s.store.UpdateUser(ctx, p.UserId, patch)
	if err != nil {
		return failWith[models.User](err, "User not found", "Update failed")
	}
	public := u.Public()
	return ok("Profile updated successfully", &public)
}
