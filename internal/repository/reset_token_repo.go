package repository

import (
	"context"
	"errors"
	"time"

	"cryptolearn-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResetTokenRepository struct {
	db *gorm.DB
}

func NewResetTokenRepo(db *gorm.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// ReplaceForUser drops any reset token the user has and stores token
func (r *ResetTokenRepository) ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, token.UserID); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", token.UserID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(token).Error
	})
}

// FindByHash finds a reset token by its hash, with its user and roles
func (r *ResetTokenRepository) FindByHash(ctx context.Context, hash string) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := r.db.WithContext(ctx).
		Preload("User.Roles").
		Where("token_hash = ?", hash).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// DeleteByHash removes a reset token; deleting a missing token is not an error
func (r *ResetTokenRepository) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	result := r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&models.PasswordResetToken{})
	return result.RowsAffected, result.Error
}

// ResetPassword stores the new password hash and consumes the token atomically
func (r *ResetTokenRepository) ResetPassword(ctx context.Context, tokenHash string, userID uint, passwordHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("password_hash", passwordHash).Error; err != nil {
			return err
		}
		result := tx.Where("token_hash = ? AND user_id = ?", tokenHash, userID).Delete(&models.PasswordResetToken{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// consumed concurrently by another request
			return ErrNotFound
		}
		return nil
	})
}

// DeleteExpired removes every reset token that expired before now
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.PasswordResetToken{})
	return result.RowsAffected, result.Error
}
