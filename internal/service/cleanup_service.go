package service

import (
	"context"
	"log/slog"
	"time"

	"cryptolearn-backend/internal/cache"
	"cryptolearn-backend/internal/metrics"
)

// CleanupService periodically removes expired refresh tokens, reset tokens
// and cached task answers.
type CleanupService struct {
	refreshRepo RefreshTokenRepository
	resetRepo   ResetTokenRepository
	answers     cache.AnswerStore
	interval    time.Duration
	metrics     *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time
}

func NewCleanupService(
	refreshRepo RefreshTokenRepository,
	resetRepo ResetTokenRepository,
	answers cache.AnswerStore,
	interval time.Duration,
	m *metrics.Metrics,
	log *slog.Logger,
) *CleanupService {
	return &CleanupService{
		refreshRepo: refreshRepo,
		resetRepo:   resetRepo,
		answers:     answers,
		interval:    interval,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// Start runs a sweep every interval until ctx is cancelled.
// A non-positive interval disables the worker.
func (w *CleanupService) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info("cleanup worker disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("cleanup worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep deletes everything that has expired by now. Each store is swept
// independently; a failing one does not stop the others.
func (w *CleanupService) Sweep(ctx context.Context) {
	now := w.now()

	if n, err := w.refreshRepo.DeleteExpired(ctx, now); err != nil {
		w.log.Error("failed to sweep refresh tokens", "error", err)
	} else {
		w.metrics.RecordSwept("refresh_tokens", n)
		if n > 0 {
			w.log.Info("expired refresh tokens removed", "count", n)
		}
	}

	if n, err := w.resetRepo.DeleteExpired(ctx, now); err != nil {
		w.log.Error("failed to sweep reset tokens", "error", err)
	} else {
		w.metrics.RecordSwept("reset_tokens", n)
		if n > 0 {
			w.log.Info("expired reset tokens removed", "count", n)
		}
	}

	if w.answers != nil {
		if n, err := w.answers.PurgeExpired(ctx); err != nil {
			w.log.Error("failed to purge task answers", "error", err)
		} else {
			w.metrics.RecordSwept("task_answers", int64(n))
		}
	}
}
