package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cryptolearn-backend/internal/config"
	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/repository"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect initializes and returns a GORM database connection
func Connect(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	// Configure GORM logger
	gormLogger := newGormLogger(log, logger.Info)
	if cfg.Server.GinMode == "release" {
		gormLogger = newGormLogger(log, logger.Error)
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)
	return db, nil
}

// Migrate creates or updates the schema and seeds the fixed role set
func Migrate(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	err := db.WithContext(ctx).AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.RefreshToken{},
		&models.PasswordResetToken{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := repository.NewRoleRepo(db).EnsureRoles(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	log.Info("schema migrated", "roles", len(models.AllRoles))
	return nil
}
