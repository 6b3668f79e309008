package repository

import (
	"context"
	"errors"

	"cryptolearn-backend/internal/models"

	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepo(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// FindByName finds a role by name
func (r *RoleRepository) FindByName(ctx context.Context, name models.RoleName) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// EnsureRoles inserts every known role that is missing
func (r *RoleRepository) EnsureRoles(ctx context.Context) error {
	for _, name := range models.AllRoles {
		role := models.Role{Name: name}
		if err := r.db.WithContext(ctx).Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}
