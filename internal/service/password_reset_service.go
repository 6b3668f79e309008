package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cryptolearn-backend/internal/mail"
	"cryptolearn-backend/internal/metrics"
	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/repository"
	"cryptolearn-backend/pkg/utils"
)

const resetMailTimeout = 30 * time.Second

type PasswordResetService struct {
	userRepo        UserRepository
	resetRepo       ResetTokenRepository
	auditRepo       AuditRepository
	mailer          mail.Sender
	ttl             time.Duration
	frontendBaseURL string
	metrics         *metrics.Metrics
	log             *slog.Logger
	now             func() time.Time

	inflight sync.WaitGroup
}

func NewPasswordResetService(
	userRepo UserRepository,
	resetRepo ResetTokenRepository,
	auditRepo AuditRepository,
	mailer mail.Sender,
	ttl time.Duration,
	frontendBaseURL string,
	m *metrics.Metrics,
	log *slog.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		userRepo:        userRepo,
		resetRepo:       resetRepo,
		auditRepo:       auditRepo,
		mailer:          mailer,
		ttl:             ttl,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
		metrics:         m,
		log:             log,
		now:             time.Now,
	}
}

// RequestReset issues a reset token for the account matching usernameOrEmail
// and mails the reset link. Unknown identifiers, token storage failures and
// mail failures all look like success to the caller.
func (s *PasswordResetService) RequestReset(ctx context.Context, usernameOrEmail string) error {
	s.metrics.RecordResetRequest()

	identifier := strings.TrimSpace(usernameOrEmail)
	if identifier == "" {
		return nil
	}

	user, err := s.findUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Info("password reset requested for unknown account")
			return nil
		}
		return fmt.Errorf("look up account: %w", err)
	}

	token := utils.NewOpaqueToken()
	record := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(token),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.resetRepo.ReplaceForUser(ctx, record); err != nil {
		s.log.Error("failed to store password reset token", "user_id", user.ID, "error", err)
		return nil
	}

	msg := mail.NewPasswordResetMessage(user.Email, user.Username, s.resetURL(token), s.ttl)
	s.dispatch(ctx, user.ID, msg)
	return nil
}

func (s *PasswordResetService) findUser(ctx context.Context, identifier string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, identifier)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return user, err
	}
	return s.userRepo.FindByEmail(ctx, identifier)
}

func (s *PasswordResetService) resetURL(token string) string {
	return s.frontendBaseURL + "/reset-password/" + token
}

// dispatch sends msg in the background. The request context's values are
// kept but its cancellation is not, so the mail outlives the response.
func (s *PasswordResetService) dispatch(ctx context.Context, userID uint, msg mail.Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetMailTimeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()

		if err := s.mailer.Send(sendCtx, msg); err != nil {
			s.metrics.RecordResetMailFailure()
			s.log.Error("failed to send password reset email", "user_id", userID, "error", err)
			return
		}
		s.log.Info("password reset email sent", "user_id", userID)
	}()
}

// Wait blocks until every reset email in flight has been handed off or failed
func (s *PasswordResetService) Wait() {
	s.inflight.Wait()
}

// Validate returns the owner of a live reset token. Expired tokens are kept.
func (s *PasswordResetService) Validate(ctx context.Context, token string) (*models.User, error) {
	record, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return &record.User, nil
}

func (s *PasswordResetService) lookup(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrResetTokenNotFound
	}

	record, err := s.resetRepo.FindByHash(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("load reset token: %w", err)
	}

	if record.Expired(s.now()) {
		return nil, ErrResetTokenExpired
	}
	return record, nil
}

// Consume deletes a reset token; consuming an unknown token is a no-op
func (s *PasswordResetService) Consume(ctx context.Context, token string) error {
	if _, err := s.resetRepo.DeleteByHash(ctx, utils.HashToken(token)); err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for the owner of token and consumes the
// token in the same transaction. An expired token is consumed on the spot.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	owner, err := s.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrResetTokenExpired) {
			if cerr := s.Consume(ctx, token); cerr != nil {
				s.log.Warn("failed to drop expired reset token", "error", cerr)
			}
		}
		return err
	}

	if !utils.IsPasswordComplex(newPassword) {
		return ErrWeakPassword
	}

	passwordHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.resetRepo.ResetPassword(ctx, utils.HashToken(token), owner.ID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenNotFound
		}
		return fmt.Errorf("reset password: %w", err)
	}

	s.log.Info("password reset completed", "user_id", owner.ID)
	recordAudit(ctx, s.auditRepo, s.log, owner.ID, models.AuditPasswordReset, "Password reset via email link")
	return nil
}
