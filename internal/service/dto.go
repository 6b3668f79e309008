package service

import (
	"time"

	"cryptolearn-backend/internal/models"
)

// UserProfile is the public view of a user account.
type UserProfile struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Roles     []string  `json:"roles"`
	Enabled   bool      `json:"enabled"`
}

func NewUserProfile(u *models.User) UserProfile {
	roles := make([]string, 0, len(u.Roles))
	for _, name := range u.RoleNames() {
		roles = append(roles, string(name))
	}
	return UserProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Roles:     roles,
		Enabled:   u.Enabled,
	}
}

// Page is one slice of a paginated listing. Page numbers start at 0.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func newPage[T any](content []T, page, size int, total int64) *Page[T] {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &Page[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}
