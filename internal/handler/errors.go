package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"cryptolearn-backend/internal/middleware"
	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/service"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const msgUnexpected = "An unexpected error occurred"

// respondError maps a service error to its HTTP status. Errors that do not
// carry a known kind are logged and hidden behind a generic 500.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrValidation):
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthenticationFailed):
		utils.ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrTokenRejected), errors.Is(err, service.ErrAccessDenied):
		utils.ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
	default:
		log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, msgUnexpected)
	}
}

// currentUser returns the authenticated user, answering 401 when absent
func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return user, true
}

// parseIDParam reads a positive numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
