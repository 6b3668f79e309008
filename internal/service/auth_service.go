package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cryptolearn-backend/internal/config"
	"cryptolearn-backend/internal/metrics"
	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/repository"
	"cryptolearn-backend/pkg/utils"
)

type AuthService struct {
	userRepo    UserRepository
	roleRepo    RoleRepository
	refreshRepo RefreshTokenRepository
	auditRepo   AuditRepository
	codec       *utils.TokenCodec
	accessTTL   time.Duration
	refreshTTL  time.Duration
	metrics     *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time
}

func NewAuthService(
	userRepo UserRepository,
	roleRepo RoleRepository,
	refreshRepo RefreshTokenRepository,
	auditRepo AuditRepository,
	codec *utils.TokenCodec,
	cfg config.JWTConfig,
	m *metrics.Metrics,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		refreshRepo: refreshRepo,
		auditRepo:   auditRepo,
		codec:       codec,
		accessTTL:   cfg.AccessTokenExpiry,
		refreshTTL:  cfg.RefreshTokenExpiry,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult carries both tokens and the profile of the signed-in user
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserProfile
}

// Register creates a new enabled account with the USER role
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*UserProfile, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	taken, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	if !utils.IsPasswordComplex(in.Password) {
		return nil, ErrWeakPassword
	}

	role, err := s.roleRepo.FindByName(ctx, models.RoleUser)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("load default role: %w", err)
	}

	passwordHash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Enabled:      true,
		Roles:        []models.Role{*role},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, identityTaken(ctx, s.userRepo, username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered", "user_id", user.ID, "username", user.Username)
	recordAudit(ctx, s.auditRepo, s.log, user.ID, models.AuditUserRegistration, fmt.Sprintf("User %s registered", user.Username))

	profile := NewUserProfile(user)
	return &profile, nil
}

// Login authenticates a user, issues an access token and replaces the
// user's refresh token with a fresh one
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordLogin("failed")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !utils.ComparePassword(user.PasswordHash, password) {
		s.metrics.RecordLogin("failed")
		return nil, ErrInvalidCredentials
	}

	if !user.Enabled {
		s.metrics.RecordLogin("disabled")
		return nil, ErrAccountDisabled
	}

	accessToken, err := s.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken := utils.NewOpaqueToken()
	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(refreshToken),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.refreshRepo.ReplaceForUser(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.metrics.RecordLogin("success")
	recordAudit(ctx, s.auditRepo, s.log, user.ID, models.AuditUserLogin, fmt.Sprintf("User %s logged in", user.Username))

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         NewUserProfile(user),
	}, nil
}

// Refresh exchanges a refresh token for a new access token.
// The refresh token itself stays unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrRefreshTokenNotFound
	}

	token, err := s.refreshRepo.FindByHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrRefreshTokenNotFound
		}
		return "", fmt.Errorf("load refresh token: %w", err)
	}

	if token.Expired(s.now()) {
		if err := s.refreshRepo.DeleteByID(ctx, token.ID); err != nil {
			s.log.Error("failed to delete expired refresh token", "token_id", token.ID, "error", err)
		}
		return "", ErrRefreshTokenExpired
	}

	if !token.User.Enabled {
		return "", ErrAccountDisabled
	}

	return s.IssueAccessToken(&token.User)
}

// Logout drops the user's refresh token. Logging out without a session is not an error.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	deleted, err := s.refreshRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if deleted > 0 {
		recordAudit(ctx, s.auditRepo, s.log, userID, models.AuditUserLogout, "User logged out")
	}
	return nil
}

// IssueAccessToken signs an access token for user
func (s *AuthService) IssueAccessToken(user *models.User) (string, error) {
	token, err := s.codec.Issue(user.Username, user.ID, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, nil
}
