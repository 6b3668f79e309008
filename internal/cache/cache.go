// Package cache holds the answers of generated exercises until they are verified.
package cache

import (
	"context"
	"time"
)

// Answer is the stored solution of one generated task.
// Exactly one of Key and Text is meaningful, depending on TaskType.
type Answer struct {
	TaskType  string    `json:"taskType"`
	Key       int       `json:"key,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnswerStore is a concurrent task id -> Answer map.
type AnswerStore interface {
	Put(ctx context.Context, taskID string, answer Answer) error
	// Get reports ok=false when the id is unknown or its entry has expired.
	Get(ctx context.Context, taskID string) (answer Answer, ok bool, err error)
	// PurgeExpired drops expired entries and returns how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
}
