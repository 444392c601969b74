package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tracking_cf/internal/common"
	"tracking_cf/internal/common/security"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
)

type AuthService struct {
	adminRepo repository.AdminRepository
}

func NewAuthService(adminRepo repository.AdminRepository) *AuthService {
	return &AuthService{adminRepo: adminRepo}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Admin *model.Admin `json:"admin"`
	Token string       `json:"token"`
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	admin, err := s.adminRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // same answer as a bad password
		}
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, admin.PasswordHash) {
		return nil, common.ErrUnauthorized
	}

	token, err := security.GenerateToken(admin.ID, admin.Username, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{Admin: admin, Token: token}, nil
}

// CreateAdmin stores a new administrator with a bcrypt password hash.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*model.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return nil, fmt.Errorf("username and a password of at least 8 characters are required: %w", common.ErrBadRequest)
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &model.Admin{Username: username, PasswordHash: hash}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

func (s *AuthService) DeleteAdmin(ctx context.Context, username string) error {
	return s.adminRepo.Delete(ctx, username)
}
