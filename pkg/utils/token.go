package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewOpaqueToken generates a random token handed to clients as a refresh or reset token
func NewOpaqueToken() string {
	return uuid.NewString()
}

// HashToken creates a SHA-256 hash of an opaque token for secure storage
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
