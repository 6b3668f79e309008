package models

import "time"

// Audit actions recorded for account and session events.
const (
	AuditUserRegistration = "user_registration"
	AuditUserLogin        = "user_login"
	AuditUserLogout       = "user_logout"
	AuditPasswordReset    = "password_reset"
	AuditPasswordChange   = "password_change"
	AuditProfileUpdate    = "profile_update"
	AuditUserDeleted      = "user_deleted"
	AuditAdminUpdateUser  = "admin_update_user"
)

// AuditLog represents the audit_logs table
// Used for security tracking and admin action logging
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
