package handler

import (
	"context"
	"log/slog"
	"net/http"

	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/service"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	msgRegistered     = "User registered successfully"
	msgLoggedOut      = "Logged out successfully"
	msgResetRequested = "If an account with that username or email exists, a password reset link has been sent"
	msgPasswordReset  = "Password has been reset successfully"
	msgResetTokenOK   = "Reset token is valid"
)

type SessionService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.UserProfile, error)
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID uint) error
}

type ResetService interface {
	RequestReset(ctx context.Context, usernameOrEmail string) error
	Validate(ctx context.Context, token string) (*models.User, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AuthHandler struct {
	sessions SessionService
	resets   ResetService
	log      *slog.Logger
}

func NewAuthHandler(sessions SessionService, resets ResetService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		resets:   resets,
		log:      log,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=1,max=50"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,password"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type PasswordResetRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
}

type NewPasswordRequest struct {
	ResetToken  string `json:"resetToken" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,password"`
}

type AuthResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	UserID       uint     `json:"userId"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
}

// Register creates a new account
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.sessions.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msgRegistered})
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, AuthResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		UserID:       res.User.ID,
		Username:     res.User.Username,
		Email:        res.User.Email,
		Roles:        res.User.Roles,
	})
}

// Refresh generates a new access token from a refresh token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	accessToken, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"accessToken": accessToken,
		"tokenType":   "Bearer",
	})
}

// Logout revokes the caller's refresh token
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), user.ID); err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.MessageResponse(c, msgLoggedOut)
}

// RequestPasswordReset answers the same way whether or not the account exists
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.resets.RequestReset(c.Request.Context(), req.UsernameOrEmail); err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.MessageResponse(c, msgResetRequested)
}

// ValidateResetToken lets the reset form check a link before asking for a
// new password
func (h *AuthHandler) ValidateResetToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "token query parameter is required")
		return
	}

	owner, err := h.resets.Validate(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  msgResetTokenOK,
		"username": owner.Username,
	})
}

// ResetPassword sets a new password using a reset token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req NewPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.resets.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.MessageResponse(c, msgPasswordReset)
}
