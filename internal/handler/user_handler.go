package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/service"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	msgProfileUpdated  = "Profile updated successfully"
	msgPasswordChanged = "Password changed successfully"
	msgAccountDeleted  = "Account deleted successfully"
	msgUserDeleted     = "User deleted successfully"
)

type AccountService interface {
	GetProfile(ctx context.Context, userID uint) (*service.UserProfile, error)
	UpdateProfile(ctx context.Context, userID uint, in service.UpdateProfileInput) (*service.ProfileUpdate, error)
	ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error
	DeleteAccount(ctx context.Context, actor *models.User, targetID uint) error
	ListUsers(ctx context.Context, req service.PageRequest) (*service.Page[service.UserProfile], error)
	AdminUpdateUser(ctx context.Context, actor *models.User, targetID uint, in service.AdminUpdateInput) (*service.UserProfile, error)
	AdminDeleteUser(ctx context.Context, actor *models.User, targetID uint) error
}

// TokenIssuer re-issues access tokens after a username change.
type TokenIssuer interface {
	IssueAccessToken(user *models.User) (string, error)
}

type UserHandler struct {
	accounts AccountService
	tokens   TokenIssuer
	log      *slog.Logger
}

func NewUserHandler(accounts AccountService, tokens TokenIssuer, log *slog.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		tokens:   tokens,
		log:      log,
	}
}

type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=1,max=50"`
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,password"`
}

type AdminUpdateUserRequest struct {
	Username    *string  `json:"username" binding:"omitempty,min=1,max=50"`
	Email       *string  `json:"email" binding:"omitempty,email,max=100"`
	Roles       []string `json:"roles"`
	Enabled     *bool    `json:"enabled"`
	NewPassword *string  `json:"newPassword" binding:"omitempty,min=8,max=128"`
}

// GetMe returns the caller's profile
func (h *UserHandler) GetMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.accounts.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, profile)
}

// UpdateMe changes the caller's username or email. A new access token is
// returned when the username changed, since the old one names the old user.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.accounts.UpdateProfile(c.Request.Context(), user.ID, service.UpdateProfileInput{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	body := gin.H{
		"message": msgProfileUpdated,
		"profile": res.Profile,
	}
	if res.IdentityChanged {
		token, err := h.tokens.IssueAccessToken(res.User)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		body["accessToken"] = token
	}

	utils.SuccessResponse(c, body)
}

// ChangePassword changes the caller's password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.MessageResponse(c, msgPasswordChanged)
}

// DeleteMe deletes the caller's own account
func (h *UserHandler) DeleteMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccount(c.Request.Context(), user, user.ID); err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.MessageResponse(c, msgAccountDeleted)
}

// ListUsers returns one page of users: ?page=0&size=10&sort=username,asc
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid page")
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(service.DefaultPageSize)))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid size")
		return
	}

	result, err := h.accounts.ListUsers(c.Request.Context(), service.PageRequest{
		Page: page,
		Size: size,
		Sort: c.Query("sort"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// UpdateUser applies an administrator's edit
func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	var req AdminUpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.accounts.AdminUpdateUser(c.Request.Context(), actor, targetID, service.AdminUpdateInput{
		Username:    req.Username,
		Email:       req.Email,
		Roles:       req.Roles,
		Enabled:     req.Enabled,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, profile)
}

// DeleteUser deletes a user on behalf of an administrator
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	if err := h.accounts.AdminDeleteUser(c.Request.Context(), actor, targetID); err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.MessageResponse(c, msgUserDeleted)
}
