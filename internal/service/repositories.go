package service

import (
	"context"
	"log/slog"
	"time"

	"cryptolearn-backend/internal/models"
)

// Persistence contracts the services depend on. The gorm repositories in
// internal/repository satisfy them.

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User, replaceRoles bool) error
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) error
	Delete(ctx context.Context, userID uint) error
	List(ctx context.Context, offset, limit int, orderBy string) ([]models.User, int64, error)
}

type RoleRepository interface {
	FindByName(ctx context.Context, name models.RoleName) (*models.Role, error)
}

type RefreshTokenRepository interface {
	ReplaceForUser(ctx context.Context, token *models.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	DeleteByID(ctx context.Context, id uint) error
	DeleteByUserID(ctx context.Context, userID uint) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ResetTokenRepository interface {
	ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) error
	FindByHash(ctx context.Context, hash string) (*models.PasswordResetToken, error)
	DeleteByHash(ctx context.Context, hash string) (int64, error)
	ResetPassword(ctx context.Context, tokenHash string, userID uint, passwordHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditRepository interface {
	CreateAuditLog(ctx context.Context, userID *uint, action string, details string) error
}

// recordAudit writes an audit entry. A failed write is logged and otherwise ignored.
func recordAudit(ctx context.Context, repo AuditRepository, log *slog.Logger, userID uint, action, details string) {
	if repo == nil {
		return
	}
	if err := repo.CreateAuditLog(ctx, &userID, action, details); err != nil {
		log.Warn("audit log write failed", "action", action, "user_id", userID, "error", err)
	}
}
