package service

import (
	"errors"
	"fmt"

	"cryptolearn-backend/pkg/utils"
)

// Error kinds. Every error a service returns on purpose unwraps to one of
// these, so the HTTP layer maps them with errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTokenRejected        = errors.New("token rejected")
	ErrAccessDenied         = errors.New("access denied")
	ErrNotFound             = errors.New("not found")
)

type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Unwrap() error { return e.kind }

func newDomainError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

func newValidationError(format string, args ...interface{}) error {
	return newDomainError(ErrValidation, fmt.Sprintf(format, args...))
}

// Authentication
var (
	ErrInvalidCredentials = newDomainError(ErrAuthenticationFailed, "invalid username or password")
	ErrAccountDisabled    = newDomainError(ErrAuthenticationFailed, "account is disabled")
)

// Session and reset tokens
var (
	ErrRefreshTokenNotFound = newDomainError(ErrTokenRejected, "refresh token not found")
	ErrRefreshTokenExpired  = newDomainError(ErrTokenRejected, "refresh token has expired, please sign in again")
	ErrResetTokenNotFound   = newDomainError(ErrNotFound, "password reset token not found")
	ErrResetTokenExpired    = newDomainError(ErrTokenRejected, "password reset token has expired")
)

// Accounts
var (
	ErrUserNotFound     = newDomainError(ErrNotFound, "user not found")
	ErrRoleNotFound     = newDomainError(ErrNotFound, "role not found")
	ErrUsernameTaken    = newDomainError(ErrValidation, "username is already taken")
	ErrEmailTaken       = newDomainError(ErrValidation, "email is already in use")
	ErrWeakPassword     = newDomainError(ErrValidation, utils.PasswordRequirements)
	ErrPasswordMismatch = newDomainError(ErrValidation, "current password is incorrect")
	ErrSamePassword     = newDomainError(ErrValidation, "new password must differ from the current password")
	ErrRolesRequired    = newDomainError(ErrValidation, "at least one role is required")
	ErrPageOutOfRange   = newDomainError(ErrValidation, "page is out of range")
)

// Privilege checks
var (
	ErrAdminRequired        = newDomainError(ErrAccessDenied, "administrator privileges required")
	ErrCannotModifyAdmin    = newDomainError(ErrAccessDenied, "administrators cannot modify other administrators")
	ErrCannotDeleteAdmin    = newDomainError(ErrAccessDenied, "administrators cannot delete other administrators")
	ErrCannotDeleteOthers   = newDomainError(ErrAccessDenied, "you can only delete your own account")
	ErrCannotChangeOwnRoles = newDomainError(ErrAccessDenied, "you cannot change your own roles")
	ErrCannotDisableSelf    = newDomainError(ErrAccessDenied, "you cannot disable your own account")
	ErrCannotSetOwnPassword = newDomainError(ErrAccessDenied, "use the change password form to change your own password")
)

// Exercises and cipher
var (
	ErrInvalidShift        = newDomainError(ErrValidation, "shift is out of range for the selected alphabet")
	ErrUnsupportedLanguage = newDomainError(ErrValidation, "unsupported language")
	ErrUnknownTaskType     = newDomainError(ErrValidation, "unknown task type")
	ErrUnknownDifficulty   = newDomainError(ErrValidation, "unknown difficulty")
)
